package models

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// CanBecome reports whether a booking may move from s to next.
func (s BookingStatus) CanBecome(next BookingStatus) bool {
	switch s {
	case BookingPending:
		return next == BookingConfirmed || next == BookingCancelled
	case BookingConfirmed:
		return next == BookingCancelled
	}
	return false
}

type Booking struct {
	ID        string        `json:"id" bson:"_id"`
	UserID    string        `json:"userId" bson:"userId"`
	Kind      string        `json:"kind" bson:"kind"` // hotel, transport, guide
	PlaceID   string        `json:"placeId,omitempty" bson:"placeId,omitempty"`
	GuideID   string        `json:"guideId,omitempty" bson:"guideId,omitempty"`
	StartDate string        `json:"startDate" bson:"startDate"`
	EndDate   string        `json:"endDate" bson:"endDate"`
	Guests    int           `json:"guests" bson:"guests"`
	Status    BookingStatus `json:"status" bson:"status"`
	CreatedAt time.Time     `json:"createdAt" bson:"createdAt"`
}

func (b *Booking) GetID() string   { return b.ID }
func (b *Booking) SetID(id string) { b.ID = id }

type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionRejected ConnectionStatus = "rejected"
)

// Connection is a tourist's request to work with a guide.
type Connection struct {
	ID        string           `json:"id" bson:"_id"`
	TouristID string           `json:"touristId" bson:"touristId"`
	GuideID   string           `json:"guideId" bson:"guideId"`
	Message   string           `json:"message,omitempty" bson:"message,omitempty"`
	Status    ConnectionStatus `json:"status" bson:"status"`
	CreatedAt time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt" bson:"updatedAt"`
}

func (c *Connection) GetID() string   { return c.ID }
func (c *Connection) SetID(id string) { c.ID = id }
