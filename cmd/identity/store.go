package identity

import (
	"context"
	"time"
)

// User is Refind's canonical security principal.
type User struct {
	ID       string
	Name     string
	Username string
	Email    string

	CreatedAt time.Time
}

// UserAuth pairs a user with its stored password digest.
// The digest never leaves the auth flow; User is the serializable shape.
type UserAuth struct {
	User           User
	PasswordDigest string
}

// CreateUserInput describes a registration request.
// All fields are required; Password is the plaintext to be digested.
type CreateUserInput struct {
	Name     string
	Username string
	Email    string
	Password string
	Now      time.Time
}

// Store is the credential persistence boundary.
//
// Deleting a user cascades deletion of its sessions: no orphaned
// refresh-only records may survive a user deletion.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error)
	DeleteUser(ctx context.Context, id string) error
}
