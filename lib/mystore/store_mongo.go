package mystore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// record wraps the stored value so any T can be kept in a collection keyed
// by uid without bson annotations on the domain types.
type record[T any] struct {
	UID  string `bson:"_id"`
	Data T      `bson:"data"`
}

type mongoStore[T any] struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var (
	mongoClientOnce sync.Once
	mongoClient     *mongo.Client
	mongoClientErr  error
)

// All stores share one client: a transaction started by one store carries a
// session in its context, and a session is only valid against the client
// that created it.
func sharedMongoClient(c context.Context) (*mongo.Client, error) {
	mongoClientOnce.Do(func() {
		client, err := mongo.Connect(options.Client().ApplyURI(os.Getenv("MONGO_URI")))
		if err != nil {
			mongoClientErr = fmt.Errorf("error creating mongo-client: %s", err)
			return
		}

		// fail fast when the database is unreachable
		err = client.Ping(c, nil)
		if err != nil {
			mongoClientErr = fmt.Errorf("error connecting to mongo: %s", err)
			return
		}

		mongoClient = client
	})

	return mongoClient, mongoClientErr
}

func newMongoStore[T any](c context.Context) (*mongoStore[T], func(), error) {
	client, err := sharedMongoClient(c)
	if err != nil {
		return nil, nil, err
	}

	databaseName := os.Getenv("MONGO_DATABASE")
	if databaseName == "" {
		databaseName = "invoicebackend"
	}

	return &mongoStore[T]{
		client:     client,
		collection: client.Database(databaseName).Collection(kindForType[T]()),
	}, func() {}, nil
}

func (s *mongoStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("error starting mongo session: %s", err)
	}
	defer session.EndSession(c)

	// the callback context carries the session, so nested Put/Get calls
	// join the transaction
	_, err = session.WithTransaction(c, func(sc context.Context) (interface{}, error) {
		return nil, f(sc)
	})

	return err
}

func (s *mongoStore[T]) Put(c context.Context, uid string, value T) error {
	_, err := s.collection.ReplaceOne(c,
		bson.M{"_id": uid},
		record[T]{UID: uid, Data: value},
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error storing entity %s with uid %s: %s", s.collection.Name(), uid, err)
	}

	return nil
}

func (s *mongoStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	rec := record[T]{}

	err := s.collection.FindOne(c, bson.M{"_id": uid}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return rec.Data, false, nil
		}
		return rec.Data, false, fmt.Errorf("error fetching entity %s with uid %s: %s", s.collection.Name(), uid, err)
	}

	return rec.Data, true, nil
}

func (s *mongoStore[T]) List(c context.Context) ([]T, error) {
	return s.find(c, bson.M{}, "")
}

func (s *mongoStore[T]) Query(c context.Context, filters []Filter, orderByField string) ([]T, error) {
	criteria := bson.M{}
	for _, f := range filters {
		if f.Compare != "=" {
			return nil, fmt.Errorf("unsupported compare operator %s", f.Compare)
		}
		criteria[fieldPath(f.Field)] = f.Value
	}

	return s.find(c, criteria, orderByField)
}

func (s *mongoStore[T]) find(c context.Context, criteria bson.M, orderByField string) ([]T, error) {
	opts := options.Find().SetLimit(100)
	if orderByField != "" {
		opts = opts.SetSort(bson.D{{Key: fieldPath(orderByField), Value: 1}})
	}

	cursor, err := s.collection.Find(c, criteria, opts)
	if err != nil {
		return nil, fmt.Errorf("error querying entities %s: %s", s.collection.Name(), err)
	}

	records := []record[T]{}
	err = cursor.All(c, &records)
	if err != nil {
		return nil, fmt.Errorf("error decoding entities %s: %s", s.collection.Name(), err)
	}

	result := make([]T, 0, len(records))
	for _, rec := range records {
		result = append(result, rec.Data)
	}
	return result, nil
}

func (s *mongoStore[T]) Ping(c context.Context) error {
	return s.client.Ping(c, nil)
}

// the bson encoder lowercases field names by default
func fieldPath(field string) string {
	return "data." + strings.ToLower(field)
}
