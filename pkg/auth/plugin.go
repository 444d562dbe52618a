package auth

import "context"

// Plugin is a non-OAuth login method registered on an Instance.
type Plugin interface {
	Login(ctx context.Context, identifier, password string) (*User, error)
}
