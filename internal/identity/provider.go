// Package identity wraps the external identity provider behind a session
// adapter with a single, serialized change subscription.
package identity

import "context"

// User is the authenticated identity reported by the provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Provider is the identity provider boundary.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*User, error)
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context, user *User) error
	SendPasswordReset(ctx context.Context, email string) error
}
