package entity

import "time"

// DocumentTemplate is a named text blob used to assemble printable
// documents. Templates are owned and versioned by an external collaborator;
// this service only looks them up by tag and renders them.
type DocumentTemplate struct {
	ID        string    `json:"id"`
	Tag       string    `json:"tag"`
	Template  string    `json:"template"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
