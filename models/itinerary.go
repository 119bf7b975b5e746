package models

import "time"

// Itinerary is a planned trip owned by one user.
type Itinerary struct {
	ID          string `json:"id" bson:"_id"`
	UserID      string `json:"userId" bson:"userId"`
	Title       string `json:"title" bson:"title"`
	Description string `json:"description" bson:"description"`
	StartDate   string `json:"startDate" bson:"startDate"`
	EndDate     string `json:"endDate" bson:"endDate"`
	TripType    string `json:"tripType" bson:"tripType"`
	// Places are kept in visiting order.
	Places    []ItineraryStop `json:"places" bson:"places"`
	CreatedAt time.Time       `json:"createdAt" bson:"createdAt"`
}

type ItineraryStop struct {
	PlaceID string `json:"placeId" bson:"placeId"`
	Name    string `json:"name" bson:"name"`
	Day     int    `json:"day,omitempty" bson:"day,omitempty"`
	Notes   string `json:"notes,omitempty" bson:"notes,omitempty"`
}

func (i *Itinerary) GetID() string   { return i.ID }
func (i *Itinerary) SetID(id string) { i.ID = id }
