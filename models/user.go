package models

import "time"

type UserType string

const (
	Tourist UserType = "tourist"
	Guide   UserType = "guide"
)

func (t UserType) Valid() bool { return t == Tourist || t == Guide }

type GeoPoint struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

type User struct {
	ID       string   `json:"id" bson:"_id"`
	Username string   `json:"username" bson:"username"`
	Email    string   `json:"email" bson:"email"`
	Password string   `json:"-" bson:"password"`
	FullName string   `json:"fullName" bson:"fullName"`
	UserType UserType `json:"userType" bson:"userType"`
	Phone    string   `json:"phone,omitempty" bson:"phone,omitempty"`
	// Location is the last known position reported by the mobile client.
	Location      *GeoPoint `json:"location,omitempty" bson:"location,omitempty"`
	IsTestAccount bool      `json:"isTestAccount,omitempty" bson:"isTestAccount,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

func (u *User) GetID() string   { return u.ID }
func (u *User) SetID(id string) { u.ID = id }

// Sanitized returns a copy without the password.
func (u User) Sanitized() User {
	u.Password = ""
	return u
}

type GuideProfile struct {
	ID          string    `json:"id" bson:"_id"`
	UserID      string    `json:"userId" bson:"userId"`
	Location    string    `json:"location" bson:"location"`
	Experience  int       `json:"experience" bson:"experience"`
	Languages   []string  `json:"languages" bson:"languages"`
	Specialties []string  `json:"specialties" bson:"specialties"`
	Rating      float64   `json:"rating" bson:"rating"`
	Bio         string    `json:"bio" bson:"bio"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

func (g *GuideProfile) GetID() string   { return g.ID }
func (g *GuideProfile) SetID(id string) { g.ID = id }
