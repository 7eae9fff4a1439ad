// Package models defines the domain types for projectsync.
package models

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Project is a legacy project record. Storage drivers own the authoritative
// copy; everything else holds transient copies.
type Project struct {
	ID          string    `json:"_id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Order       int       `json:"order" yaml:"order"`
	Description string    `json:"description,omitempty" yaml:"-"`
	Requests    []string  `json:"requests,omitempty" yaml:"requests,omitempty"`
	Created     time.Time `json:"created" yaml:"created"`
	Updated     time.Time `json:"updated" yaml:"updated"`
}

// Validate checks the fields every stored project must carry.
func (p *Project) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.ID, validation.Required, validation.Length(1, 128)),
		validation.Field(&p.Name, validation.Required, validation.Length(1, 256)),
		validation.Field(&p.Order, validation.Min(0)),
	)
}
