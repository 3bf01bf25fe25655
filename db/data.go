package db

import "fmt"

// Namespace names a collection within a database.
type Namespace struct {
	DB         string `bson:"db" json:"db" yaml:"db"`
	Collection string `bson:"collection" json:"collection" yaml:"collection"`
}

func (ns Namespace) String() string { return fmt.Sprintf("%s.%s", ns.DB, ns.Collection) }

// IsValid reports whether both the database and collection are named.
func (ns Namespace) IsValid() bool { return ns.DB != "" && ns.Collection != "" }

// FindOptions control how a Source opens its cursor.
type FindOptions struct {
	// Filter selects documents; nil selects the whole collection.
	Filter interface{}

	// BatchSize is the number of documents the server returns per
	// cursor advance.
	BatchSize int32

	// NoCursorTimeout keeps the server from reaping an idle cursor
	// while a slow batch is being written.
	NoCursorTimeout bool
}
