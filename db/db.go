package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsersCollection         = "users"
	GuideProfilesCollection = "guideProfiles"
	PlacesCollection        = "places"
	ItinerariesCollection   = "itineraries"
	BookingsCollection      = "bookings"
	ConnectionsCollection   = "connections"
	SavedPlacesCollection   = "savedPlaces"
)

// Connect opens a client and pings the primary before returning it.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the unique indexes the application relies on.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "isTestAccount", Value: 1}}},
		},
		GuideProfilesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "location", Value: 1}}},
		},
		PlacesCollection: {
			{Keys: bson.D{{Key: "category", Value: 1}}},
		},
		ItinerariesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		BookingsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		ConnectionsCollection: {
			{Keys: bson.D{{Key: "touristId", Value: 1}}},
			{Keys: bson.D{{Key: "guideId", Value: 1}}},
		},
		SavedPlacesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "placeId", Value: 1}}, Options: unique},
		},
	}

	for name, models := range indexes {
		if _, err := database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}
