package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// SessionCookie holds the session token.
const SessionCookie = "token"

var (
	errMissingAuthorization = errors.New("missing credentials")
	errBadAuthorization     = errors.New("bad auth header")
)

const bearerPrefix = "Bearer "

// tokenFromRequest prefers the session cookie, then the Authorization header.
func tokenFromRequest(r *http.Request, allowQuery bool) (string, error) {
	if ck, err := r.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return ck.Value, nil
	}
	if h := r.Header.Get(echo.HeaderAuthorization); h != "" {
		return bearerTokenFromString(h)
	}
	if allowQuery {
		if t := r.URL.Query().Get("token"); t != "" {
			return t, nil
		}
	}
	return "", errMissingAuthorization
}

func bearerTokenFromString(raw string) (string, error) {
	trimmed := strings.Trim(raw, " ")
	if trimmed == "" {
		return "", errMissingAuthorization
	}
	if len(trimmed) <= len(bearerPrefix) || !strings.HasPrefix(trimmed, bearerPrefix) {
		return "", errBadAuthorization
	}
	token := trimmed[len(bearerPrefix):]
	if strings.Count(token, ".") != 2 {
		return "", errBadAuthorization
	}
	return token, nil
}

func sessionCookie(token string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredSessionCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
