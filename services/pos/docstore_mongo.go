package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDocument é o envelope gravado no MongoDB: metadados na raiz e o corpo em "body".
// _seq guarda a ordem de inserção.
type mongoDocument struct {
	ID      string             `bson:"_id"`
	Rev     string             `bson:"_rev"`
	Seq     primitive.ObjectID `bson:"_seq"`
	Created time.Time          `bson:"_created"`
	Body    bson.Raw           `bson:"body"`
}

// MongoDocumentStore implementa DocumentStore sobre o MongoDB
type MongoDocumentStore struct {
	db *mongo.Database
}

// NewMongoDocumentStore cria uma nova instância de MongoDocumentStore
func NewMongoDocumentStore(db *mongo.Database) *MongoDocumentStore {
	return &MongoDocumentStore{db: db}
}

// ConnectMongoDB abre o cliente e valida a conexão
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// CreateIndexes cria os índices de ordenação e o índice único de email
func (s *MongoDocumentStore) CreateIndexes(ctx context.Context) error {
	for _, name := range collections {
		indexes := []mongo.IndexModel{
			{Keys: bson.D{{Key: "_seq", Value: 1}}},
		}
		switch name {
		case CollectionUsers:
			indexes = append(indexes, mongo.IndexModel{
				Keys:    bson.D{{Key: "body.email", Value: 1}},
				Options: options.Index().SetUnique(true),
			})
		case CollectionSales:
			indexes = append(indexes, mongo.IndexModel{
				Keys: bson.D{{Key: "body.customerId", Value: 1}},
			})
		}
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (s *MongoDocumentStore) collection(name string) (*mongo.Collection, error) {
	if err := validateCollection(name); err != nil {
		return nil, err
	}
	return s.db.Collection(name), nil
}

func (s *MongoDocumentStore) Get(ctx context.Context, collection, id string) (*RawDocument, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	var doc mongoDocument
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return doc.raw()
}

func (s *MongoDocumentStore) Insert(ctx context.Context, collection string, doc RawDocument) (string, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return "", err
	}

	var body bson.D
	if err := bson.UnmarshalExtJSON(doc.Body, false, &body); err != nil {
		return "", fmt.Errorf("failed to convert %s/%s to bson: %w", collection, doc.ID, err)
	}
	rev := newRevision(doc.Rev)

	if doc.Rev == "" {
		_, err := coll.InsertOne(ctx, bson.D{
			{Key: "_id", Value: doc.ID},
			{Key: "_rev", Value: rev},
			{Key: "_seq", Value: primitive.NewObjectID()},
			{Key: "_created", Value: time.Now().UTC()},
			{Key: "body", Value: body},
		})
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return "", fmt.Errorf("%s/%s already exists: %w", collection, doc.ID, ErrConflict)
			}
			return "", fmt.Errorf("failed to create %s/%s: %w", collection, doc.ID, err)
		}
		return rev, nil
	}

	result, err := coll.UpdateOne(ctx,
		bson.M{"_id": doc.ID, "_rev": doc.Rev},
		bson.M{"$set": bson.M{"_rev": rev, "body": body}},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%s/%s: %w", collection, doc.ID, ErrConflict)
		}
		return "", fmt.Errorf("failed to update %s/%s: %w", collection, doc.ID, err)
	}
	if result.MatchedCount == 0 {
		return "", s.missOrConflict(ctx, coll, collection, doc.ID)
	}
	return rev, nil
}

func (s *MongoDocumentStore) Destroy(ctx context.Context, collection, id, rev string) error {
	coll, err := s.collection(collection)
	if err != nil {
		return err
	}

	result, err := coll.DeleteOne(ctx, bson.M{"_id": id, "_rev": rev})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if result.DeletedCount == 0 {
		return s.missOrConflict(ctx, coll, collection, id)
	}
	return nil
}

func (s *MongoDocumentStore) missOrConflict(ctx context.Context, coll *mongo.Collection, collection, id string) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("failed to check %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return fmt.Errorf("%s/%s: %w", collection, id, ErrConflict)
}

func (s *MongoDocumentStore) Find(ctx context.Context, collection string, selector Selector, limit int) ([]RawDocument, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	filter := bson.M{}
	for key, value := range selector {
		filter["body."+key] = value
	}
	opts := options.Find().SetSort(bson.D{{Key: "_seq", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	docs := make([]RawDocument, 0)
	for cursor.Next(ctx) {
		var doc mongoDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", collection, err)
		}
		raw, err := doc.raw()
		if err != nil {
			return nil, err
		}
		docs = append(docs, *raw)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", collection, err)
	}
	return docs, nil
}

func (s *MongoDocumentStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *MongoDocumentStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

func (d mongoDocument) raw() (*RawDocument, error) {
	body, err := bson.MarshalExtJSON(d.Body, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document %s to json: %w", d.ID, err)
	}
	return &RawDocument{ID: d.ID, Rev: d.Rev, Body: body}, nil
}
