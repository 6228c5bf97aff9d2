// Package users declares the server-side repository contract for account
// records in persistent storage.
package users

import (
	"context"

	"github.com/dmitrijs2005/viewtube/internal/server/models"
)

// Repository defines operations for creating and looking up users.
// Username/email uniqueness is enforced by the store.
type Repository interface {
	// Create inserts a new user and returns it with the generated id and
	// timestamps filled in. A duplicate username or email returns
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID returns the user with the given id, or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByLogin returns the user whose username or email matches either
	// argument, or common.ErrorNotFound. Arguments are expected to be
	// already normalized (trimmed, lowercased).
	GetByLogin(ctx context.Context, userName, email string) (*models.User, error)

	// ExistsByLogin reports whether a user with the given normalized
	// username or email already exists.
	ExistsByLogin(ctx context.Context, userName, email string) (bool, error)
}
