package models

import (
	"strings"
	"time"
)

// Categories whose places get Wikimedia imagery.
var EnrichableCategories = map[string]bool{
	"attraction": true,
	"monument":   true,
	"heritage":   true,
	"landmark":   true,
}

type Place struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Category    string    `json:"category" bson:"category"`
	Location    string    `json:"location" bson:"location"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Coordinates *GeoPoint `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	// Wikimedia is set as a whole or not at all.
	Wikimedia *WikimediaInfo `json:"wikimedia,omitempty" bson:"wikimedia,omitempty"`
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt"`
}

func (p *Place) GetID() string   { return p.ID }
func (p *Place) SetID(id string) { p.ID = id }

// Enrichable reports whether the place is in an enrichable category and has
// no Wikimedia data yet.
func (p Place) Enrichable() bool {
	return IsEnrichableCategory(p.Category) && p.Wikimedia == nil
}

func IsEnrichableCategory(category string) bool {
	return EnrichableCategories[strings.ToLower(strings.TrimSpace(category))]
}

// WikimediaInfo is the attribution block for a Commons image. Thumbnail,
// attribution page and license are always present; public-domain and
// anonymous files may lack the rest.
type WikimediaInfo struct {
	ThumbnailURL    string `json:"thumbnailUrl" bson:"thumbnailUrl" validate:"required,url"`
	DescriptionHTML string `json:"descriptionHtml" bson:"descriptionHtml"`
	Artist          string `json:"artist" bson:"artist"`
	AttributionURL  string `json:"attributionUrl" bson:"attributionUrl" validate:"required,url"`
	License         string `json:"license" bson:"license" validate:"required"`
	LicenseURL      string `json:"licenseUrl" bson:"licenseUrl" validate:"omitempty,url"`
}

// Complete reports whether w carries the fields every stored block needs.
// It matches the validate tags above.
func (w WikimediaInfo) Complete() bool {
	return w.ThumbnailURL != "" && w.AttributionURL != "" && w.License != ""
}

type SavedPlace struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"userId"`
	PlaceID   string    `json:"placeId" bson:"placeId"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

func (s *SavedPlace) GetID() string   { return s.ID }
func (s *SavedPlace) SetID(id string) { s.ID = id }

// ImageMatch is the best image found for a place by an image search provider.
type ImageMatch struct {
	ImageURL  string
	Wikimedia WikimediaInfo
}
