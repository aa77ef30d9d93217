package models

import (
	"strings"
	"time"
)

// DefaultCategory is assigned when a persona is created without a category.
const DefaultCategory = "other"

// Persona is a pseudonymous identity bound to exactly one topical category
// for its lifetime. OwnerID is immutable after creation.
type Persona struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
}

// NormalizeCategory trims and lowercases a category label. Every category
// comparison in the system goes through this; an empty label maps to
// DefaultCategory.
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return DefaultCategory
	}
	return c
}

// InCategory reports whether the persona belongs to the given category,
// comparing normalized forms on both sides.
func (p *Persona) InCategory(category string) bool {
	return NormalizeCategory(p.Category) == NormalizeCategory(category)
}
