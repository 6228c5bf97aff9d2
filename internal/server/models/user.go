// Package models defines server-side data structures persisted in PostgreSQL.
package models

import "time"

// User is a registered account record. PasswordHash and RefreshToken never
// leave the server; external callers only ever see a SanitizedUser.
//
// RefreshToken is the single rotating session slot: at most one valid value
// exists per user at any time, overwritten on login/refresh and cleared on
// logout.
type User struct {
	ID            string
	UserName      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	RefreshToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SanitizedUser is the outward representation of a User.
type SanitizedUser struct {
	ID            string    `json:"id"`
	UserName      string    `json:"userName"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Sanitized strips the password hash and refresh token.
func (u *User) Sanitized() *SanitizedUser {
	return &SanitizedUser{
		ID:            u.ID,
		UserName:      u.UserName,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}
