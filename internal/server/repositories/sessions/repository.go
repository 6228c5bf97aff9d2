// Package sessions declares the session-store contract: the single rotating
// refresh-token slot kept on each user row.
//
// The slot lives in the same persistence as the user identity (one-to-one),
// but is managed behind this narrow interface so locking and rotation
// concerns stay isolated from profile persistence. Writes touch only the
// token column and never re-run identity-level validation.
package sessions

import "context"

// Repository manages the per-user refresh-token slot. All operations are
// idempotent with respect to repetition of the same logical effect.
type Repository interface {
	// Set overwrites the user's refresh-token slot, invalidating any prior
	// value.
	Set(ctx context.Context, userID, token string) error

	// Get returns the stored refresh token, or "" when no session exists.
	// An unknown userID returns common.ErrorNotFound.
	Get(ctx context.Context, userID string) (string, error)

	// Clear empties the slot. Clearing an already-empty slot is not an
	// error.
	Clear(ctx context.Context, userID string) error

	// Rotate atomically replaces oldToken with newToken. If the slot no
	// longer holds oldToken (already rotated, revoked, or never issued) it
	// returns common.ErrRefreshTokenReused and leaves the slot untouched.
	Rotate(ctx context.Context, userID, oldToken, newToken string) error
}
