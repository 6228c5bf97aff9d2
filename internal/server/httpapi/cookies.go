package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/viewtube/internal/server/config"
	"github.com/dmitrijs2005/viewtube/internal/server/services"
)

// Cookie names for the transport-level auto-resubmission mechanism.
const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

func parseSameSite(s string) http.SameSite {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func buildCookie(cfg *config.Config, name, value string, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: parseSameSite(cfg.CookieSameSite),
	}
	if strings.TrimSpace(cfg.CookieDomain) != "" {
		ck.Domain = cfg.CookieDomain
	}
	if ttl > 0 {
		ck.Expires = time.Now().Add(ttl).UTC()
		ck.MaxAge = int(ttl.Seconds())
	}
	return ck
}

func buildDeletionCookie(cfg *config.Config, name string) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: parseSameSite(cfg.CookieSameSite),
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
	}
	if strings.TrimSpace(cfg.CookieDomain) != "" {
		ck.Domain = cfg.CookieDomain
	}
	return ck
}

// setAuthCookies propagates a freshly issued token pair to the client.
func setAuthCookies(w http.ResponseWriter, cfg *config.Config, pair *services.TokenPair) {
	http.SetCookie(w, buildCookie(cfg, accessTokenCookie, pair.AccessToken, cfg.AccessTokenValidityDuration))
	http.SetCookie(w, buildCookie(cfg, refreshTokenCookie, pair.RefreshToken, cfg.RefreshTokenValidityDuration))
}

// clearAuthCookies removes both token cookies.
func clearAuthCookies(w http.ResponseWriter, cfg *config.Config) {
	http.SetCookie(w, buildDeletionCookie(cfg, accessTokenCookie))
	http.SetCookie(w, buildDeletionCookie(cfg, refreshTokenCookie))
}
