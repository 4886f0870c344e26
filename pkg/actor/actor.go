// Package actor identifies the user performing an action. The inventory core
// never authenticates anyone; it only records who received, dispensed, or
// adjusted stock, using the identity the gateway forwards in headers.
package actor

import (
	"context"
)

// Actor represents the entity performing an action in the system.
type Actor struct {
	// ID is the unique identifier of the actor (user ID)
	ID string `json:"id"`

	// Name is the actor's display name
	Name string `json:"name"`

	// Email is the actor's email address
	Email string `json:"email,omitempty"`
}

// GetID returns the actor ID, or "system" when no actor is attached.
// Ledger rows always carry a performed_by value, so absent identity
// degrades to the system actor instead of an empty string.
func (a *Actor) GetID() string {
	if a == nil || a.ID == "" {
		return "system"
	}
	return a.ID
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// contextKey is the type for context keys to avoid collisions
type contextKey string

const actorContextKey contextKey = "actor"

// WithActor attaches an Actor to the context.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, a)
}

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if a, ok := ctx.Value(actorContextKey).(*Actor); ok {
		return a
	}
	return nil
}
