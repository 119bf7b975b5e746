package models

// Document is implemented by every stored entity so the gateway can assign ids.
type Document interface {
	GetID() string
	SetID(id string)
}
