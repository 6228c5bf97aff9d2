package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/viewtube/internal/common"
	"github.com/dmitrijs2005/viewtube/internal/logging"
	"github.com/dmitrijs2005/viewtube/internal/server/auth"
	"github.com/dmitrijs2005/viewtube/internal/server/config"
	"github.com/dmitrijs2005/viewtube/internal/server/metrics"
	"github.com/dmitrijs2005/viewtube/internal/server/models"
	"github.com/dmitrijs2005/viewtube/internal/server/services"
)

type stubFlows struct {
	registerIn   *services.RegisterInput
	registerUser *models.SanitizedUser
	registerErr  error

	loginUserName string
	loginEmail    string
	loginPassword string
	loginUser     *models.SanitizedUser
	loginPair     *services.TokenPair
	loginErr      error

	logoutUserID string
	logoutErr    error

	refreshToken string
	refreshPair  *services.TokenPair
	refreshErr   error

	getUserID  string
	getUser    *models.SanitizedUser
	getUserErr error
}

func (f *stubFlows) Register(_ context.Context, in services.RegisterInput) (*models.SanitizedUser, error) {
	f.registerIn = &in
	return f.registerUser, f.registerErr
}

func (f *stubFlows) Login(_ context.Context, userName, email, password string) (*models.SanitizedUser, *services.TokenPair, error) {
	f.loginUserName, f.loginEmail, f.loginPassword = userName, email, password
	return f.loginUser, f.loginPair, f.loginErr
}

func (f *stubFlows) Logout(_ context.Context, userID string) error {
	f.logoutUserID = userID
	return f.logoutErr
}

func (f *stubFlows) RefreshToken(_ context.Context, refreshToken string) (*services.TokenPair, error) {
	f.refreshToken = refreshToken
	return f.refreshPair, f.refreshErr
}

func (f *stubFlows) GetUser(_ context.Context, userID string) (*models.SanitizedUser, error) {
	f.getUserID = userID
	return f.getUser, f.getUserErr
}

func testCfg() *config.Config {
	return &config.Config{
		EndpointAddrHTTP:             "localhost:8080",
		AccessTokenSecret:            "access-k",
		RefreshTokenSecret:           "refresh-k",
		AccessTokenValidityDuration:  15 * time.Minute,
		RefreshTokenValidityDuration: 7 * 24 * time.Hour,
		CookieSecure:                 true,
		CookieSameSite:               "lax",
	}
}

func newTestServer(t *testing.T, flows *stubFlows) (*Server, http.Handler) {
	t.Helper()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := NewServer(testCfg(), logger, flows, metrics.New())
	return srv, srv.router()
}

func accessTokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte("access-k"), time.Minute)
	require.NoError(t, err)
	return token
}

func decodeEnvelope(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func cookieByName(res *http.Response, name string) *http.Cookie {
	for _, ck := range res.Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func multipartRegisterBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestRegister_Success(t *testing.T) {
	flows := &stubFlows{
		registerUser: &models.SanitizedUser{ID: "u1", UserName: "alice", Email: "alice@example.com", FullName: "Alice A"},
	}
	_, h := newTestServer(t, flows)

	body, contentType := multipartRegisterBody(t,
		map[string]string{
			"fullName": "Alice A",
			"userName": "alice",
			"email":    "alice@example.com",
			"password": "s3cret",
		},
		map[string]string{"avatar": "png-bytes", "coverImage": "png-bytes"},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, flows.registerIn)
	assert.Equal(t, "alice", flows.registerIn.UserName)
	assert.NotNil(t, flows.registerIn.Avatar)
	assert.NotNil(t, flows.registerIn.CoverImage)

	env := decodeEnvelope(t, rec.Body)
	assert.Equal(t, float64(http.StatusCreated), env["status"])
	data, ok := env["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", data["userName"])
	_, leaked := data["passwordHash"]
	assert.False(t, leaked)
}

func TestRegister_WithoutCover(t *testing.T) {
	flows := &stubFlows{registerUser: &models.SanitizedUser{ID: "u1"}}
	_, h := newTestServer(t, flows)

	body, contentType := multipartRegisterBody(t,
		map[string]string{"fullName": "A", "userName": "a", "email": "a@b.c", "password": "p"},
		map[string]string{"avatar": "png-bytes"},
	)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotNil(t, flows.registerIn.Avatar)
	assert.Nil(t, flows.registerIn.CoverImage)
}

func TestRegister_NotMultipart(t *testing.T) {
	_, h := newTestServer(t, &stubFlows{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", strings.NewReader(`{"userName":"a"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", common.ErrorValidation, http.StatusBadRequest},
		{"conflict", common.ErrorAlreadyExists, http.StatusConflict},
		{"upstream", common.ErrorUpstream, http.StatusInternalServerError},
		{"internal", common.ErrorInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t, &stubFlows{registerErr: tt.err})

			body, contentType := multipartRegisterBody(t,
				map[string]string{"fullName": "A", "userName": "a", "email": "a@b.c", "password": "p"},
				map[string]string{"avatar": "png-bytes"},
			)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			env := decodeEnvelope(t, rec.Body)
			assert.NotEmpty(t, env["message"])
		})
	}
}

func TestLogin_Success(t *testing.T) {
	flows := &stubFlows{
		loginUser: &models.SanitizedUser{ID: "u1", UserName: "alice"},
		loginPair: &services.TokenPair{AccessToken: "at", RefreshToken: "rt"},
	}
	_, h := newTestServer(t, flows)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login",
		strings.NewReader(`{"userName":"alice","password":"s3cret"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", flows.loginUserName)
	assert.Equal(t, "s3cret", flows.loginPassword)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	res := rec.Result()
	defer res.Body.Close()

	access := cookieByName(res, "accessToken")
	require.NotNil(t, access)
	assert.Equal(t, "at", access.Value)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.Positive(t, access.MaxAge)

	refresh := cookieByName(res, "refreshToken")
	require.NotNil(t, refresh)
	assert.Equal(t, "rt", refresh.Value)
	assert.True(t, refresh.HttpOnly)

	env := decodeEnvelope(t, res.Body)
	data := env["data"].(map[string]any)
	assert.Equal(t, "at", data["accessToken"])
	assert.Equal(t, "rt", data["refreshToken"])
}

func TestLogin_FormBody(t *testing.T) {
	flows := &stubFlows{
		loginUser: &models.SanitizedUser{ID: "u1", UserName: "alice"},
		loginPair: &services.TokenPair{AccessToken: "at", RefreshToken: "rt"},
	}
	_, h := newTestServer(t, flows)

	form := url.Values{}
	form.Set("email", "alice@example.com")
	form.Set("password", "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", flows.loginEmail)
	assert.Equal(t, "s3cret", flows.loginPassword)

	res := rec.Result()
	res.Body.Close()
	require.NotNil(t, cookieByName(res, "accessToken"))
}

func TestLogin_BadBody(t *testing.T) {
	_, h := newTestServer(t, &stubFlows{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown user", common.ErrorNotFound, http.StatusNotFound},
		{"wrong password", common.ErrorUnauthorized, http.StatusUnauthorized},
		{"missing login", common.ErrorValidation, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t, &stubFlows{loginErr: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login",
				strings.NewReader(`{"userName":"alice","password":"x"}`))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			res := rec.Result()
			res.Body.Close()
			assert.Nil(t, cookieByName(res, "accessToken"))
		})
	}
}

func TestLogout_Success(t *testing.T) {
	flows := &stubFlows{}
	_, h := newTestServer(t, flows)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.Header.Set("Authorization", "Bearer "+accessTokenFor(t, "u1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", flows.logoutUserID)

	res := rec.Result()
	defer res.Body.Close()

	for _, name := range []string{"accessToken", "refreshToken"} {
		ck := cookieByName(res, name)
		require.NotNil(t, ck)
		assert.Empty(t, ck.Value)
		assert.Negative(t, ck.MaxAge)
	}
}

func TestLogout_RequiresAuth(t *testing.T) {
	flows := &stubFlows{}
	_, h := newTestServer(t, flows)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, flows.logoutUserID)
}

func TestRefresh_FromCookie(t *testing.T) {
	flows := &stubFlows{refreshPair: &services.TokenPair{AccessToken: "at2", RefreshToken: "rt2"}}
	_, h := newTestServer(t, flows)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "rt1"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rt1", flows.refreshToken)

	res := rec.Result()
	defer res.Body.Close()

	refresh := cookieByName(res, "refreshToken")
	require.NotNil(t, refresh)
	assert.Equal(t, "rt2", refresh.Value)
}

func TestRefresh_FromBody(t *testing.T) {
	flows := &stubFlows{refreshPair: &services.TokenPair{AccessToken: "at2", RefreshToken: "rt2"}}
	_, h := newTestServer(t, flows)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token",
		strings.NewReader(`{"refreshToken":"rt1"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rt1", flows.refreshToken)
}

func TestRefresh_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"reused token", common.ErrRefreshTokenReused, http.StatusUnauthorized},
		{"expired token", common.ErrTokenExpired, http.StatusUnauthorized},
		{"invalid token", common.ErrInvalidToken, http.StatusUnauthorized},
		{"missing token", common.ErrorUnauthorized, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(t, &stubFlows{refreshErr: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token",
				strings.NewReader(`{"refreshToken":"rt1"}`))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			res := rec.Result()
			res.Body.Close()
			assert.Nil(t, cookieByName(res, "accessToken"))
		})
	}
}

func TestMe_WithBearerToken(t *testing.T) {
	flows := &stubFlows{getUser: &models.SanitizedUser{ID: "u1", UserName: "alice"}}
	_, h := newTestServer(t, flows)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessTokenFor(t, "u1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", flows.getUserID)

	env := decodeEnvelope(t, rec.Body)
	data := env["data"].(map[string]any)
	assert.Equal(t, "alice", data["userName"])
}

func TestMe_WithCookieToken(t *testing.T) {
	flows := &stubFlows{getUser: &models.SanitizedUser{ID: "u1"}}
	_, h := newTestServer(t, flows)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: accessTokenFor(t, "u1")})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", flows.getUserID)
}

func TestMe_InvalidToken(t *testing.T) {
	flows := &stubFlows{}
	_, h := newTestServer(t, flows)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, flows.getUserID)
}

func TestHealthz(t *testing.T) {
	_, h := newTestServer(t, &stubFlows{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
