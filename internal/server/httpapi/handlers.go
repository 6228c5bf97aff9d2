package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/viewtube/internal/common"
	"github.com/dmitrijs2005/viewtube/internal/server/models"
	"github.com/dmitrijs2005/viewtube/internal/server/services"
)

// maxRegisterBytes caps a registration request, including both image files.
const maxRegisterBytes = 32 << 20

type loginRequest struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	User         *models.SanitizedUser `json:"user,omitempty"`
	AccessToken  string                `json:"accessToken"`
	RefreshToken string                `json:"refreshToken"`
}

// statusForError maps service sentinels to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenReused):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes the error envelope for a failed flow. Validation
// and auth errors carry their own message; everything else gets a canonical
// one so internals do not leak.
func respondServiceError(w http.ResponseWriter, err error) {
	status := statusForError(err)

	var msg string
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusConflict, http.StatusNotFound:
		msg = err.Error()
	case http.StatusInternalServerError:
		if errors.Is(err, common.ErrorUpstream) {
			msg = err.Error()
		} else {
			msg = "internal server error"
		}
	}

	writeError(w, status, msg)
}

func formUpload(r *http.Request, field string) (*services.Upload, func(), error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, nil
		}
		return nil, func() {}, err
	}
	return &services.Upload{
		Body:        file,
		ContentType: header.Header.Get("Content-Type"),
	}, func() { file.Close() }, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRegisterBytes)
	if err := r.ParseMultipartForm(maxRegisterBytes); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form data")
		return
	}

	avatar, closeAvatar, err := formUpload(r, "avatar")
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed avatar upload")
		return
	}
	defer closeAvatar()

	cover, closeCover, err := formUpload(r, "coverImage")
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed cover image upload")
		return
	}
	defer closeCover()

	user, err := s.users.Register(r.Context(), services.RegisterInput{
		FullName:   r.FormValue("fullName"),
		UserName:   r.FormValue("userName"),
		Email:      r.FormValue("email"),
		Password:   r.FormValue("password"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user, "user registered successfully")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		req.UserName = r.PostFormValue("userName")
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, pair, err := s.users.Login(r.Context(), req.UserName, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			writeError(w, http.StatusNotFound, "user does not exist")
			return
		}
		respondServiceError(w, err)
		return
	}

	setAuthCookies(w, s.cfg, pair)
	w.Header().Set("Cache-Control", "no-store")
	writeSuccess(w, http.StatusOK, authResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "logged in successfully")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing access token")
		return
	}

	if err := s.users.Logout(r.Context(), userID); err != nil {
		respondServiceError(w, err)
		return
	}

	clearAuthCookies(w, s.cfg)
	writeSuccess(w, http.StatusOK, nil, "logged out successfully")
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if ck, err := r.Cookie(refreshTokenCookie); err == nil {
		token = ck.Value
	}
	if token == "" && r.Body != nil {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			token = req.RefreshToken
		}
	}

	pair, err := s.users.RefreshToken(r.Context(), token)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	setAuthCookies(w, s.cfg, pair)
	w.Header().Set("Cache-Control", "no-store")
	writeSuccess(w, http.StatusOK, authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "access token refreshed")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing access token")
		return
	}

	user, err := s.users.GetUser(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, "current user fetched successfully")
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, nil, "ok")
}
