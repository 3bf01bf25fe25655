package db

import (
	"context"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/event"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ClientOptions configure a connection made with Connect.
type ClientOptions struct {
	URI     string
	AppName string

	// Monitors are attached to the driver in order; nil entries are
	// skipped.
	Monitors []*event.CommandMonitor
}

// Client wraps a driver client and hands out collections that
// satisfy the Source, Destination, and Upserter interfaces.
type Client struct {
	client *mongo.Client
}

// Connect dials and pings a deployment.
func Connect(ctx context.Context, opts ClientOptions) (*Client, error) {
	if opts.URI == "" {
		return nil, errors.New("connection string must be specified")
	}

	copts := options.Client().ApplyURI(opts.URI)
	if opts.AppName != "" {
		copts.SetAppName(opts.AppName)
	}
	if monitor := combineMonitors(opts.Monitors...); monitor != nil {
		copts.SetMonitor(monitor)
	}

	client, err := mongo.Connect(copts)
	if err != nil {
		return nil, errors.Wrap(err, "problem constructing client")
	}

	if err = client.Ping(ctx, nil); err != nil {
		catcher := grip.NewCatcher()
		catcher.Wrap(err, "problem reaching deployment")
		catcher.Wrap(client.Disconnect(ctx), "problem disconnecting")
		return nil, catcher.Resolve()
	}

	return WrapClient(client), nil
}

// WrapClient adapts an already connected driver client.
func WrapClient(client *mongo.Client) *Client { return &Client{client: client} }

func (c *Client) Disconnect(ctx context.Context) error {
	return errors.WithStack(c.client.Disconnect(ctx))
}

func (c *Client) Collection(ns Namespace) *Collection {
	return &Collection{
		ns:   ns,
		coll: c.client.Database(ns.DB).Collection(ns.Collection),
	}
}

// Collection is a driver collection bound to a namespace.
type Collection struct {
	ns   Namespace
	coll *mongo.Collection
}

func (c *Collection) Namespace() Namespace { return c.ns }

func (c *Collection) Find(ctx context.Context, opts FindOptions) (Cursor, error) {
	filter := opts.Filter
	if filter == nil {
		filter = bson.D{}
	}

	fopts := options.Find().SetNoCursorTimeout(opts.NoCursorTimeout)
	if opts.BatchSize > 0 {
		fopts.SetBatchSize(opts.BatchSize)
	}

	cursor, err := c.coll.Find(ctx, filter, fopts)
	if err != nil {
		return nil, errors.Wrapf(err, "problem opening cursor on %s", c.ns)
	}

	return &batchCursor{cursor: cursor}, nil
}

func (c *Collection) InsertOne(ctx context.Context, doc bson.Raw) error {
	_, err := c.coll.InsertOne(ctx, doc)
	return errors.WithStack(err)
}

func (c *Collection) Upsert(ctx context.Context, id interface{}, doc interface{}) error {
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return errors.Wrapf(err, "problem upserting document in %s", c.ns)
}

func combineMonitors(monitors ...*event.CommandMonitor) *event.CommandMonitor {
	active := make([]*event.CommandMonitor, 0, len(monitors))
	for _, m := range monitors {
		if m != nil {
			active = append(active, m)
		}
	}

	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}

	return &event.CommandMonitor{
		Started: func(ctx context.Context, e *event.CommandStartedEvent) {
			for _, m := range active {
				if m.Started != nil {
					m.Started(ctx, e)
				}
			}
		},
		Succeeded: func(ctx context.Context, e *event.CommandSucceededEvent) {
			for _, m := range active {
				if m.Succeeded != nil {
					m.Succeeded(ctx, e)
				}
			}
		},
		Failed: func(ctx context.Context, e *event.CommandFailedEvent) {
			for _, m := range active {
				if m.Failed != nil {
					m.Failed(ctx, e)
				}
			}
		},
	}
}
