package api

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

const (
	defaultJWKSCacheTTL = 15 * time.Minute
	defaultSessionTTL   = 7 * 24 * time.Hour
	sessionIssuer       = "taskflow"
)

// Auth issues HS256 session tokens and validates incoming tokens. When a
// JWKS is configured, RS256 bearer tokens from that identity provider are
// accepted as well.
type Auth struct {
	Secret []byte
	TTL    time.Duration

	JWKS     *keyfunc.JWKS
	Audience string
	Issuer   string

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
	now         func() time.Time
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewAuth creates a new Auth instance. jwks may be nil.
func NewAuth(secret []byte, ttl time.Duration, jwks *keyfunc.JWKS, audience, issuer string) *Auth {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	methods := []string{"HS256"}
	if jwks != nil {
		methods = append(methods, "RS256")
	}
	return &Auth{
		Secret:      secret,
		TTL:         ttl,
		JWKS:        jwks,
		Audience:    audience,
		Issuer:      issuer,
		parser:      jwt.NewParser(jwt.WithValidMethods(methods)),
		keyCacheTTL: defaultJWKSCacheTTL,
		now:         time.Now,
	}
}

// Issue signs a session token for userID.
func (a *Auth) Issue(userID string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.TTL)
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// UserIDFromRequest authenticates the request from its session cookie or
// bearer header, and from the token query parameter when allowQuery is set.
func (a *Auth) UserIDFromRequest(r *http.Request, allowQuery bool) (string, error) {
	token, err := tokenFromRequest(r, allowQuery)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	id, err := a.UserIDFromToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return id, nil
}

// UserIDFromToken verifies token and returns its subject.
func (a *Auth) UserIDFromToken(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", errBadAuthorization
	}
	parsed, err := a.parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodHMAC:
			return a.Secret, nil
		case *jwt.SigningMethodRSA:
			return a.keyForToken(t)
		}
		return nil, errors.New("invalid signing method")
	})
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	now := a.now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return "", errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now+60, false) {
		return "", errors.New("token not valid yet")
	}
	if _, session := parsed.Method.(*jwt.SigningMethodHMAC); session {
		if !claims.VerifyIssuer(sessionIssuer, true) {
			return "", errors.New("invalid issuer")
		}
	} else {
		if a.Audience != "" && !claims.VerifyAudience(a.Audience, true) {
			return "", errors.New("invalid audience")
		}
		if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, true) {
			return "", errors.New("invalid issuer")
		}
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub")
	}
	return sub, nil
}

func (a *Auth) keyForToken(token *jwt.Token) (any, error) {
	if a.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && a.keyCacheTTL > 0 {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if a.now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}

	if kid != "" && a.keyCacheTTL > 0 {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: a.now().Add(a.keyCacheTTL)})
	}
	return key, nil
}
