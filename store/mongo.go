package store

import (
	"context"
	"errors"
	"fmt"

	"mahatour/apperr"
	"mahatour/db"
	"mahatour/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// NewMongo wires every repository to its collection in database.
func NewMongo(database *mongo.Database) *Store {
	return &Store{
		Users:       newMongoRepo[models.User](database, db.UsersCollection),
		Guides:      newMongoRepo[models.GuideProfile](database, db.GuideProfilesCollection),
		Places:      newMongoRepo[models.Place](database, db.PlacesCollection),
		Itineraries: newMongoRepo[models.Itinerary](database, db.ItinerariesCollection),
		Bookings:    newMongoRepo[models.Booking](database, db.BookingsCollection),
		Connections: newMongoRepo[models.Connection](database, db.ConnectionsCollection),
		SavedPlaces: newMongoRepo[models.SavedPlace](database, db.SavedPlacesCollection),
		ping: func(ctx context.Context) error {
			return database.Client().Ping(ctx, readpref.Primary())
		},
	}
}

type mongoRepo[T any] struct {
	coll *mongo.Collection
}

func newMongoRepo[T any](database *mongo.Database, name string) *mongoRepo[T] {
	return &mongoRepo[T]{coll: database.Collection(name)}
}

func (r *mongoRepo[T]) Get(ctx context.Context, id string) (*T, error) {
	return r.FindOne(ctx, Filter{"_id": id})
}

func (r *mongoRepo[T]) FindOne(ctx context.Context, filter Filter) (*T, error) {
	var doc T
	err := r.coll.FindOne(ctx, bson.M(filter)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", r.coll.Name(), ErrNotFound)
	}
	if err != nil {
		return nil, apperr.Storage(r.coll.Name()+".find", err)
	}
	return &doc, nil
}

func (r *mongoRepo[T]) List(ctx context.Context, filter Filter) ([]T, error) {
	if filter == nil {
		filter = Filter{}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M(filter), opts)
	if err != nil {
		return nil, apperr.Storage(r.coll.Name()+".list", err)
	}
	defer cursor.Close(ctx)

	docs := []T{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperr.Storage(r.coll.Name()+".list", err)
	}
	return docs, nil
}

func (r *mongoRepo[T]) Create(ctx context.Context, doc *T) error {
	if _, err := assignID(doc); err != nil {
		return err
	}
	_, err := r.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", r.coll.Name(), ErrDuplicate)
	}
	if err != nil {
		return apperr.Storage(r.coll.Name()+".create", err)
	}
	return nil
}

func (r *mongoRepo[T]) Update(ctx context.Context, id string, fields Fields) error {
	return r.update(ctx, id, nil, fields)
}

func (r *mongoRepo[T]) UpdateIf(ctx context.Context, id string, cond Filter, fields Fields) error {
	return r.update(ctx, id, cond, fields)
}

func (r *mongoRepo[T]) update(ctx context.Context, id string, cond Filter, fields Fields) error {
	set := bson.M{}
	for k, v := range fields {
		if k != "_id" {
			set[k] = v
		}
	}
	if len(set) == 0 {
		return apperr.Validation("nothing to update")
	}

	filter := bson.M{}
	for k, v := range cond {
		filter[k] = v
	}
	filter["_id"] = id

	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w", r.coll.Name(), ErrDuplicate)
	}
	if err != nil {
		return apperr.Storage(r.coll.Name()+".update", err)
	}
	if res.MatchedCount == 0 {
		if len(cond) > 0 {
			return fmt.Errorf("%s %s: %w", r.coll.Name(), id, ErrStale)
		}
		return fmt.Errorf("%s %s: %w", r.coll.Name(), id, ErrNotFound)
	}
	return nil
}

func (r *mongoRepo[T]) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return apperr.Storage(r.coll.Name()+".delete", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s %s: %w", r.coll.Name(), id, ErrNotFound)
	}
	return nil
}

func (r *mongoRepo[T]) DeleteWhere(ctx context.Context, filter Filter) (int64, error) {
	if len(filter) == 0 {
		return 0, apperr.Validation("refusing to delete with an empty filter")
	}
	res, err := r.coll.DeleteMany(ctx, bson.M(filter))
	if err != nil {
		return 0, apperr.Storage(r.coll.Name()+".deleteMany", err)
	}
	return res.DeletedCount, nil
}
