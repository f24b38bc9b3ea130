// Package mongo implements document.Backend on top of the official MongoDB driver.
package mongo

import (
	"context"
	"errors"
	"github.com/ValentinKolb/dFacade/lib/config"
	"github.com/ValentinKolb/dFacade/lib/connector"
	"github.com/ValentinKolb/dFacade/lib/database"
	"github.com/ValentinKolb/dFacade/lib/document"
	"github.com/lni/dragonboat/v4/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"time"
)

var (
	Logger = logger.GetLogger("document/mongo")
)

const (
	// ConnectTimeout bounds server selection while connecting
	ConnectTimeout = 10 * time.Second
	// objectIDField is the primary key mongo adds to every document
	objectIDField = "_id"

	// server error codes of renameCollection
	codeNamespaceNotFound = 26
	codeNamespaceExists   = 48
)

// Backend is a document.Backend bound to one MongoDB database
type Backend struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ document.Backend = (*Backend)(nil)

// New wraps a connected client. The backend disconnects the client in Close.
func New(client *mongo.Client, databaseName string) *Backend {
	return &Backend{
		client: client,
		db:     client.Database(databaseName),
	}
}

// Connect resolves the mongodb credentials from reg and connects to databaseName.
// The connection is verified with a ping against the primary.
func Connect(ctx context.Context, reg *config.Registry, databaseName string) (*Backend, error) {
	cred, err := reg.Resolve(database.BackendMongoDB)
	if err != nil {
		return nil, err
	}
	uri, err := connector.MongoURI(cred, databaseName)
	if err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(ConnectTimeout))
	if err != nil {
		return nil, database.WrapBackend("connect to mongodb at "+cred.Addr(), err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, database.WrapBackend("connect to mongodb at "+cred.Addr(), err)
	}

	Logger.Infof("connected to mongodb at %s (database %s)", cred.Addr(), databaseName)
	return New(client, databaseName), nil
}

// Open connects to mongodb (see Connect) and returns a document facade on top of it.
func Open(ctx context.Context, reg *config.Registry, databaseName string, opts ...document.Option) (*document.Store, error) {
	b, err := Connect(ctx, reg, databaseName)
	if err != nil {
		return nil, err
	}
	return document.New(b, opts...), nil
}

// Database returns the underlying driver database handle
func (b *Backend) Database() *mongo.Database {
	return b.db
}

// --------------------------------------------------------------------------
// Interface Methods (docu see document.Backend)
// --------------------------------------------------------------------------

func (b *Backend) Type() database.BackendType {
	return database.BackendMongoDB
}

func (b *Backend) FindOne(ctx context.Context, collection, field string, value any) (document.Document, bool, error) {
	var raw bson.M
	err := b.db.Collection(collection).FindOne(ctx, bson.M{field: value}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return fromBSON(raw), true, nil
}

func (b *Backend) FindAll(ctx context.Context, collection string) ([]document.Document, error) {
	cursor, err := b.db.Collection(collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}
	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, err
	}

	docs := make([]document.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, fromBSON(raw))
	}
	return docs, nil
}

func (b *Backend) Count(ctx context.Context, collection string) (int64, error) {
	return b.db.Collection(collection).CountDocuments(ctx, bson.D{})
}

func (b *Backend) InsertOne(ctx context.Context, collection string, doc document.Document) error {
	_, err := b.db.Collection(collection).InsertOne(ctx, toBSON(doc))
	return err
}

func (b *Backend) InsertMany(ctx context.Context, collection string, docs []document.Document) error {
	batch := make([]interface{}, len(docs))
	for i, doc := range docs {
		batch[i] = toBSON(doc)
	}
	_, err := b.db.Collection(collection).InsertMany(ctx, batch)
	return err
}

func (b *Backend) ReplaceOne(ctx context.Context, collection, field string, value any, doc document.Document) (bool, error) {
	res, err := b.db.Collection(collection).ReplaceOne(ctx, bson.M{field: value}, toBSON(doc))
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (b *Backend) UpdateOne(ctx context.Context, collection, field string, value any, set document.Document) (document.Document, bool, error) {
	var raw bson.M
	err := b.db.Collection(collection).FindOneAndUpdate(ctx,
		bson.M{field: value},
		bson.M{"$set": toBSON(set)},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return fromBSON(raw), true, nil
}

func (b *Backend) DeleteOne(ctx context.Context, collection, field string, value any) (bool, error) {
	res, err := b.db.Collection(collection).DeleteOne(ctx, bson.M{field: value})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (b *Backend) DeleteMany(ctx context.Context, collection, field string, value any) (int64, error) {
	res, err := b.db.Collection(collection).DeleteMany(ctx, bson.M{field: value})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Rename issues renameCollection against the admin database
func (b *Backend) Rename(ctx context.Context, collection, newName string) error {
	name := b.db.Name()
	err := b.client.Database("admin").RunCommand(ctx, bson.D{
		{Key: "renameCollection", Value: name + "." + collection},
		{Key: "to", Value: name + "." + newName},
	}).Err()
	return renameError(err, collection, newName)
}

// renameError maps the namespace errors of renameCollection to the facade's error kinds
func renameError(err error, collection, newName string) error {
	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) {
		return err
	}
	switch cmdErr.Code {
	case codeNamespaceNotFound:
		return &database.Error{
			Code: database.CodeNotFound,
			Msg:  "collection \"" + collection + "\" does not exist",
			Err:  err,
		}
	case codeNamespaceExists:
		return &database.Error{
			Code: database.CodeBackend,
			Msg:  "target collection \"" + newName + "\" already exists",
			Err:  err,
		}
	}
	return err
}

func (b *Backend) Drop(ctx context.Context, collection string) error {
	return b.db.Collection(collection).Drop(ctx)
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx, readpref.Primary())
}

func (b *Backend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()
	return b.client.Disconnect(ctx)
}
