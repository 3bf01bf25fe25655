package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mongodb/docshift"
	"github.com/mongodb/docshift/apm"
	"github.com/mongodb/docshift/config"
	"github.com/mongodb/docshift/db"
	"github.com/mongodb/docshift/metrics"
	"github.com/mongodb/docshift/sink"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/v2/event"
)

const appName = "docshift"

func runMigration(ctx context.Context, path string, debug bool) error {
	conf, err := config.Load(path)
	if err != nil {
		return err
	}
	if err = conf.Validate(); err != nil {
		return err
	}
	if err = setLogLevel(conf.Telemetry.LogLevel, debug); err != nil {
		return errors.Wrap(err, "problem setting log level")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitors := commandMonitors(ctx, conf.Telemetry)

	source, err := db.Connect(ctx, db.ClientOptions{URI: conf.Source.URI, AppName: appName, Monitors: monitors})
	if err != nil {
		return errors.Wrap(err, "problem connecting to source")
	}
	defer disconnect(source, "source")

	dest, err := db.Connect(ctx, db.ClientOptions{URI: conf.Destination.URI, AppName: appName, Monitors: monitors})
	if err != nil {
		return errors.Wrap(err, "problem connecting to destination")
	}
	defer disconnect(dest, "destination")

	opts := conf.MigrationOptions()
	opts.Reporter = docshift.NewLoggingReporter()

	if conf.Telemetry.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts.Reporter = docshift.MultiReporter{opts.Reporter, metrics.NewReporter(reg)}

		srv := metrics.NewServer(conf.Telemetry.MetricsAddr, reg)
		srv.Start()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			grip.Warning(srv.Shutdown(sctx))
		}()
	}

	stream, err := docshift.NewStream(
		source.Collection(conf.Source.Namespace()),
		dest.Collection(conf.Destination.Namespace()),
		opts,
	)
	if err != nil {
		return err
	}

	ledger, runErr := stream.Run(ctx)

	// delivery and bookkeeping run even when the migration was
	// interrupted, so they must not inherit its cancellation.
	finishCtx := context.WithoutCancel(ctx)

	out, closeSinks := failureSinks(finishCtx, conf.Output, stream.ID())
	defer closeSinks()

	status, err := deliver(finishCtx, out, ledger)
	fmt.Println(status)

	if conf.Output.MetadataCollection != "" {
		meta := stream.Metadata(conf.Source.Namespace(), conf.Destination.Namespace())
		metaNS := db.Namespace{DB: conf.Destination.Database, Collection: conf.Output.MetadataCollection}
		grip.Warning(message.WrapError(docshift.SaveRunMetadata(finishCtx, dest.Collection(metaNS), meta), message.Fields{
			"message": "problem recording run",
			"run":     stream.ID(),
			"ns":      metaNS.String(),
		}))
	}

	return combine(runErr, err)
}

// commandMonitors builds the driver hooks the telemetry settings ask
// for.
func commandMonitors(ctx context.Context, conf config.Telemetry) []*event.CommandMonitor {
	var out []*event.CommandMonitor

	if conf.APMInterval > 0 {
		m := apm.NewMonitor(nil)
		apm.StartLogging(ctx, conf.APMInterval, m)
		out = append(out, m.DriverAPM())
	}

	if conf.Tracing {
		out = append(out, apm.NewTracingMonitor(nil))
	}

	return out
}

// failureSinks always includes the failure file. An unreachable redis
// deployment is logged and skipped rather than losing the file.
func failureSinks(ctx context.Context, conf config.Output, runID string) (sink.Sink, func()) {
	file := sink.NewFileSink(conf.FailedDocsPath)
	if conf.RedisURL == "" {
		return file, func() {}
	}

	rs, err := sink.NewRedisSink(ctx, conf.RedisURL, conf.RedisKey, runID)
	if err != nil {
		grip.Error(message.WrapError(err, message.Fields{
			"message": "redis failure sink unavailable, writing failure file only",
			"run":     runID,
		}))
		return file, func() {}
	}

	return sink.Multi{file, rs}, func() { grip.Warning(rs.Close()) }
}

// deliver hands the ledger to the sink and returns the line to show
// the operator.
func deliver(ctx context.Context, out sink.Sink, ledger *docshift.Ledger) (string, error) {
	docs := ledger.Handoff()
	n, err := out.Write(ctx, docs)

	grip.Info(message.Fields{
		"message":  "failed document delivery",
		"failed":   len(docs),
		"written":  n,
		"location": out.Location(),
	})

	if len(docs) == 0 {
		return "All documents were exported", err
	}
	if err != nil {
		return fmt.Sprintf("Not all documents were exported, and the %d failed documents could not be written to: %s", len(docs), out.Location()), err
	}

	return fmt.Sprintf("Not all documents were exported, failed documents located @: %s", out.Location()), err
}

func combine(runErr, deliveryErr error) error {
	if runErr == nil {
		return errors.Wrap(deliveryErr, "problem delivering failed documents")
	}
	if deliveryErr != nil {
		grip.Error(message.WrapError(deliveryErr, "problem delivering failed documents"))
	}
	return runErr
}

func disconnect(c *db.Client, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grip.Warning(message.WrapError(c.Disconnect(ctx), message.Fields{
		"message": "problem disconnecting",
		"client":  name,
	}))
}
