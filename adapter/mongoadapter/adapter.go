/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package mongoadapter implements the migration adapter for MongoDB.
//
// Change bodies are database commands written in MongoDB Extended JSON, either a single
// command document or an array of them executed in order:
//
//	// +up
//	[
//	  {"create": "users"},
//	  {"createIndexes": "users", "indexes": [{"key": {"email": 1}, "name": "email_1", "unique": true}]}
//	]
//
//	// +down
//	{"drop": "users"}
package mongoadapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acronis/go-appkit/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/acronis/go-dbmigrate"
	"github.com/acronis/go-dbmigrate/change"
)

// ScriptExtension is the extension of definition files executed by the adapter.
const ScriptExtension = ".json"

// Default names of the collections storing execution records and advisory locks.
const (
	DefaultMigrationsCollection = "schema_migrations"
	DefaultSeedsCollection      = "schema_seeds"
	DefaultLocksCollection      = "schema_migration_locks"
)

const backendName = string(dbmigrate.DialectMongoDB)

// Adapter is the migration adapter for MongoDB.
type Adapter struct {
	url            string
	databaseName   string
	connectRetries int
	logger         log.FieldLogger
	now            func() time.Time

	client *mongo.Client
	db     *mongo.Database

	migrationsCollection string
	seedsCollection      string
	locksCollection      string
}

// Option is a functional option for Adapter configuration.
type Option func(*Adapter)

// WithMigrationsCollection sets a custom name of the collection storing executed migrations.
func WithMigrationsCollection(name string) Option {
	return func(a *Adapter) {
		a.migrationsCollection = name
	}
}

// WithSeedsCollection sets a custom name of the collection storing executed seeds.
func WithSeedsCollection(name string) Option {
	return func(a *Adapter) {
		a.seedsCollection = name
	}
}

// WithLocksCollection sets a custom name of the collection storing advisory locks.
func WithLocksCollection(name string) Option {
	return func(a *Adapter) {
		a.locksCollection = name
	}
}

// New creates a MongoDB adapter. The connection is established by Connect.
func New(cfg *dbmigrate.Config, logger log.FieldLogger, opts ...Option) (*Adapter, error) {
	if cfg == nil {
		return nil, &dbmigrate.ConfigurationError{Err: fmt.Errorf("config cannot be nil")}
	}
	if cfg.Dialect != dbmigrate.DialectMongoDB {
		return nil, &dbmigrate.ConfigurationError{
			Key: "db.dialect", Err: fmt.Errorf("expected %q, got %q", dbmigrate.DialectMongoDB, cfg.Dialect)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	_, uri := cfg.DriverNameAndDSN()
	a := &Adapter{
		url:                  uri,
		databaseName:         cfg.MongoDB.Database,
		connectRetries:       cfg.ConnectRetries,
		logger:               logger,
		now:                  time.Now,
		migrationsCollection: DefaultMigrationsCollection,
		seedsCollection:      DefaultSeedsCollection,
		locksCollection:      DefaultLocksCollection,
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, name := range []string{a.migrationsCollection, a.seedsCollection, a.locksCollection} {
		if name == "" {
			return nil, &dbmigrate.ConfigurationError{Err: errors.New("collection name cannot be empty")}
		}
	}
	return a, nil
}

// Backend returns "mongodb".
func (a *Adapter) Backend() string {
	return backendName
}

// ScriptExtension returns ".json".
func (a *Adapter) ScriptExtension() string {
	return ScriptExtension
}

// Database returns the target database or nil if the adapter isn't connected.
func (a *Adapter) Database() *mongo.Database {
	return a.db
}

// Connect creates the client and pings the server.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.client != nil {
		return nil
	}
	client, err := mongo.Connect(options.Client().ApplyURI(a.url))
	if err != nil {
		return a.storageErr("connect", "", err)
	}
	if err = dbmigrate.PingWithRetries(ctx, a.connectRetries, func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	}); err != nil {
		_ = client.Disconnect(ctx)
		return a.storageErr("connect", "", fmt.Errorf("ping: %w", err))
	}
	a.client = client
	a.db = client.Database(a.databaseName)
	a.logger.Debug("connected to database", log.String("dialect", backendName), log.String("database", a.databaseName))
	return nil
}

// Disconnect closes the client.
func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	client := a.client
	a.client, a.db = nil, nil
	if err := client.Disconnect(ctx); err != nil {
		return a.storageErr("disconnect", "", err)
	}
	a.logger.Debug("disconnected from database", log.String("dialect", backendName))
	return nil
}

func (a *Adapter) database() (*mongo.Database, error) {
	if a.db == nil {
		return nil, fmt.Errorf("not connected")
	}
	return a.db, nil
}

func (a *Adapter) collectionFor(kind change.Kind) (*mongo.Collection, error) {
	db, err := a.database()
	if err != nil {
		return nil, err
	}
	switch kind {
	case change.KindMigration:
		return db.Collection(a.migrationsCollection), nil
	case change.KindSeed:
		return db.Collection(a.seedsCollection), nil
	default:
		return nil, fmt.Errorf("unknown change kind %q", kind)
	}
}

func (a *Adapter) storageErr(op, changeID string, err error) error {
	return &dbmigrate.StorageError{Backend: backendName, Op: op, ChangeID: changeID, Err: err}
}

// EnsureChangeLog creates a unique index on the id field of the execution log collection.
// The collection itself is created implicitly.
func (a *Adapter) EnsureChangeLog(ctx context.Context, kind change.Kind) error {
	coll, err := a.collectionFor(kind)
	if err != nil {
		return a.storageErr("ensure change log", "", err)
	}
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("id_unique"),
	})
	if err != nil {
		return a.storageErr("ensure change log", "", fmt.Errorf("create index on %s: %w", coll.Name(), err))
	}
	return nil
}

type executionDoc struct {
	ID        string    `bson:"id"`
	Name      string    `bson:"name"`
	SourceRef string    `bson:"sourceRef"`
	AppliedAt time.Time `bson:"appliedAt"`
	Applied   bool      `bson:"applied"`
}

// ReadExecutionLog returns all execution records of the kind ordered by appliedAt and id.
func (a *Adapter) ReadExecutionLog(ctx context.Context, kind change.Kind) ([]change.ExecutionRecord, error) {
	coll, err := a.collectionFor(kind)
	if err != nil {
		return nil, a.storageErr("read execution log", "", err)
	}
	cursor, err := coll.Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "appliedAt", Value: 1}, {Key: "id", Value: 1}}))
	if err != nil {
		return nil, a.storageErr("read execution log", "", err)
	}
	var docs []executionDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, a.storageErr("read execution log", "", fmt.Errorf("decode documents: %w", err))
	}
	records := make([]change.ExecutionRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, change.ExecutionRecord{
			ID:        doc.ID,
			Name:      doc.Name,
			SourceRef: doc.SourceRef,
			AppliedAt: doc.AppliedAt.UTC(),
			Applied:   doc.Applied,
		})
	}
	return records, nil
}

// MarkApplied upserts the execution record of def with applied = true.
func (a *Adapter) MarkApplied(ctx context.Context, def *change.Definition) error {
	if err := a.mark(ctx, def, true); err != nil {
		return a.storageErr("mark applied", def.ID, err)
	}
	return nil
}

// MarkReverted upserts the execution record of def with applied = false.
func (a *Adapter) MarkReverted(ctx context.Context, def *change.Definition) error {
	if err := a.mark(ctx, def, false); err != nil {
		return a.storageErr("mark reverted", def.ID, err)
	}
	return nil
}

func (a *Adapter) mark(ctx context.Context, def *change.Definition, applied bool) error {
	coll, err := a.collectionFor(def.Kind)
	if err != nil {
		return err
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: def.Name},
		{Key: "sourceRef", Value: def.SourceRef},
		{Key: "appliedAt", Value: a.now().UTC()},
		{Key: "applied", Value: applied},
	}}}
	_, err = coll.UpdateOne(ctx, bson.D{{Key: "id", Value: def.ID}}, update, options.UpdateOne().SetUpsert(true))
	return err
}

// Apply runs the commands of the forward body of a migration or the body of a seed.
func (a *Adapter) Apply(ctx context.Context, def *change.Definition) error {
	return a.runScript(ctx, def, change.DirectionUp, "apply")
}

// Revert runs the commands of the reverse body of a migration.
func (a *Adapter) Revert(ctx context.Context, def *change.Definition) error {
	if def.Kind != change.KindMigration {
		return a.storageErr("revert", def.ID, fmt.Errorf("%s can't be reverted", def.Kind))
	}
	return a.runScript(ctx, def, change.DirectionDown, "revert")
}

// ValidateDefinition checks that every body of def is a well-formed list of Extended JSON commands,
// so a malformed file is reported when definitions are loaded rather than when it's executed.
func (a *Adapter) ValidateDefinition(def *change.Definition) error {
	directions := []change.Direction{change.DirectionUp}
	if def.Kind == change.KindMigration {
		directions = append(directions, change.DirectionDown)
	}
	for _, direction := range directions {
		if _, err := parseScript(def, direction); err != nil {
			return err
		}
	}
	return nil
}

func parseScript(def *change.Definition, direction change.Direction) ([]bson.D, error) {
	commands, err := ParseCommands(def.Script(direction))
	if err != nil {
		return nil, &dbmigrate.DefinitionParseError{File: def.SourceRef, Err: fmt.Errorf("+%s: %w", direction, err)}
	}
	return commands, nil
}

func (a *Adapter) runScript(ctx context.Context, def *change.Definition, direction change.Direction, op string) error {
	commands, err := parseScript(def, direction)
	if err != nil {
		return err
	}
	db, err := a.database()
	if err != nil {
		return a.storageErr(op, def.ID, err)
	}
	for i, cmd := range commands {
		if err = db.RunCommand(ctx, cmd).Err(); err != nil {
			return a.storageErr(op, def.ID, fmt.Errorf("run command %d (%s): %w", i+1, commandName(cmd), err))
		}
	}
	return nil
}
