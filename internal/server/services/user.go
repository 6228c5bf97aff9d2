// Package services contains server-side business logic. This file implements
// UserService, which handles registration with media upload, login, logout,
// and rotation of the per-user refresh-token slot.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/viewtube/internal/common"
	"github.com/dmitrijs2005/viewtube/internal/dbx"
	"github.com/dmitrijs2005/viewtube/internal/server/auth"
	"github.com/dmitrijs2005/viewtube/internal/server/config"
	"github.com/dmitrijs2005/viewtube/internal/server/media"
	"github.com/dmitrijs2005/viewtube/internal/server/models"
	"github.com/dmitrijs2005/viewtube/internal/server/password"
	"github.com/dmitrijs2005/viewtube/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Upload is a file attachment handed to the media collaborator.
type Upload struct {
	Body        io.Reader
	ContentType string
}

// RegisterInput carries the registration form. Avatar is mandatory,
// CoverImage is optional.
type RegisterInput struct {
	FullName   string
	UserName   string
	Email      string
	Password   string
	Avatar     *Upload
	CoverImage *Upload
}

// UserService provides the account flows:
//   - Register: validate, upload media, create the identity
//   - Login: verify credentials and mint tokens
//   - Logout: clear the session slot
//   - RefreshToken: rotate the refresh token and mint a new pair
//
// Flows return values only; cookie side effects belong to the HTTP boundary.
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	media                        media.Storage
	accessSecret                 []byte
	refreshSecret                []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	mediaUploadTimeout           time.Duration
}

// NewUserService constructs a UserService using repositories, the media
// collaborator, and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, storage media.Storage, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		media:                        storage,
		accessSecret:                 []byte(cfg.AccessTokenSecret),
		refreshSecret:                []byte(cfg.RefreshTokenSecret),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		mediaUploadTimeout:           cfg.MediaUploadTimeout,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Register validates the input, uploads the avatar (and cover image if
// provided), and persists a new identity with a hashed password and
// normalized username/email. The created record is re-fetched and returned
// sanitized; failure to re-fetch is an internal fault.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.SanitizedUser, error) {
	fullName := strings.TrimSpace(in.FullName)
	userName := normalize(in.UserName)
	email := normalize(in.Email)

	if fullName == "" || userName == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return nil, fmt.Errorf("%w: fullName, userName, email and password are required", common.ErrorValidation)
	}
	if in.Avatar == nil {
		return nil, fmt.Errorf("%w: avatar file is required", common.ErrorValidation)
	}

	repo := s.repomanager.Users(s.db)
	exists, err := repo.ExistsByLogin(ctx, userName, email)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if exists {
		return nil, common.ErrorAlreadyExists
	}

	avatarURL, err := s.uploadMedia(ctx, in.Avatar)
	if err != nil {
		return nil, fmt.Errorf("%w: avatar upload failed", common.ErrorUpstream)
	}

	// Cover is optional, but once an upload is attempted its failure fails
	// the whole registration: no partial success.
	coverURL := ""
	if in.CoverImage != nil {
		coverURL, err = s.uploadMedia(ctx, in.CoverImage)
		if err != nil {
			return nil, fmt.Errorf("%w: cover image upload failed", common.ErrorUpstream)
		}
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	var created *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.Users(tx)
		u, err := repoTx.Create(ctx, &models.User{
			UserName:      userName,
			Email:         email,
			FullName:      fullName,
			PasswordHash:  hash,
			AvatarURL:     avatarURL,
			CoverImageURL: coverURL,
		})
		if err != nil {
			return err
		}
		created, err = repoTx.GetByID(ctx, u.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, common.ErrorInternal
	}

	return created.Sanitized(), nil
}

// Login looks the user up by username or email (at least one is required),
// verifies the password, and on success persists a fresh refresh token in the
// session slot, overwriting any prior value.
func (s *UserService) Login(ctx context.Context, userName, email, pass string) (*models.SanitizedUser, *TokenPair, error) {
	userName = normalize(userName)
	email = normalize(email)

	if userName == "" && email == "" {
		return nil, nil, fmt.Errorf("%w: userName or email is required", common.ErrorValidation)
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByLogin(ctx, userName, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, common.ErrorInternal
	}

	if !password.Verify(pass, user.PasswordHash) {
		return nil, nil, common.ErrorUnauthorized
	}

	pair, err := s.generateTokenPair(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	return user.Sanitized(), pair, nil
}

// Logout clears the stored refresh token unconditionally. Clearing an
// already-empty slot is not an error.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.repomanager.Sessions(s.db).Clear(ctx, userID); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// RefreshToken verifies the presented refresh token (signature, expiry, and
// the session-slot cross-check) and rotates it: the old token becomes
// permanently invalid the instant the new pair is issued.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, common.ErrorUnauthorized
	}

	userID, err := auth.GetUserIDFromToken(refreshToken, s.refreshSecret)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)
	if _, err := repo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	access, err := auth.GenerateToken(userID, s.accessSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := auth.GenerateToken(userID, s.refreshSecret, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	// Atomic compare-and-swap against the slot: a token that was already
	// rotated or revoked no longer matches and must force re-authentication.
	if err := s.repomanager.Sessions(s.db).Rotate(ctx, userID, refreshToken, refresh); err != nil {
		if errors.Is(err, common.ErrRefreshTokenReused) {
			return nil, common.ErrRefreshTokenReused
		}
		return nil, common.ErrorInternal
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// GetUser returns the sanitized account record for userID.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.SanitizedUser, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return user.Sanitized(), nil
}

// --- helpers below ---

func (s *UserService) uploadMedia(ctx context.Context, up *Upload) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.mediaUploadTimeout)
	defer cancel()
	return s.media.Upload(ctx, media.RandomStorageKey(), up.Body, up.ContentType)
}

func (s *UserService) generateTokenPair(ctx context.Context, userID string) (*TokenPair, error) {
	access, err := auth.GenerateToken(userID, s.accessSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := auth.GenerateToken(userID, s.refreshSecret, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.Sessions(s.db).Set(ctx, userID, refresh); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
