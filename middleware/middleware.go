package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"mahatour/apperr"
	"mahatour/models"
	"mahatour/rdx"
	"mahatour/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

type ctxKey int

const claimsKey ctxKey = iota

// JWT claims
type Claims struct {
	Username string          `json:"username"`
	UserID   string          `json:"userId"`
	UserType models.UserType `json:"userType"`
	jwt.RegisteredClaims
}

// Auth issues and checks HS256 bearer tokens.
type Auth struct {
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	revoked rdx.Cache
}

func NewAuth(secret string, ttl time.Duration) *Auth {
	return &Auth{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// UseDenylist makes Parse reject tokens passed to Revoke.
func (a *Auth) UseDenylist(c rdx.Cache) {
	a.revoked = c
}

func revokedKey(jti string) string { return "auth:revoked:" + jti }

// Revoke denylists the token behind c until it would have expired anyway.
func (a *Auth) Revoke(ctx context.Context, c *Claims) error {
	if a.revoked == nil || c.ID == "" {
		return nil
	}
	ttl := time.Minute
	if c.ExpiresAt != nil {
		ttl = c.ExpiresAt.Sub(a.now())
	}
	if ttl <= 0 {
		return nil
	}
	return a.revoked.Set(ctx, revokedKey(c.ID), "1", ttl)
}

// Issue signs a token for u.
func (a *Auth) Issue(u *models.User) (string, error) {
	now := a.now()
	claims := Claims{
		Username: u.Username,
		UserID:   u.ID,
		UserType: u.UserType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates a raw token (without the Bearer prefix). A denylist that
// cannot be reached does not block the request.
func (a *Auth) Parse(ctx context.Context, raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, apperr.Authentication("Invalid token")
	}
	if a.revoked != nil && claims.ID != "" {
		if _, err := a.revoked.Get(ctx, revokedKey(claims.ID)); err == nil {
			return nil, apperr.Authentication("Token revoked")
		}
	}
	return claims, nil
}

func bearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", apperr.Authentication("Missing token")
	}
	raw, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || raw == "" {
		return "", apperr.Authentication("Invalid token format")
	}
	return raw, nil
}

func (a *Auth) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		raw, err := bearer(r)
		if err != nil {
			utils.RespondWithAppError(w, nil, err)
			return
		}
		claims, err := a.Parse(r.Context(), raw)
		if err != nil {
			utils.RespondWithAppError(w, nil, err)
			return
		}
		next(w, r.WithContext(WithClaims(r.Context(), claims)), ps)
	}
}

// OptionalAuth attaches the caller's claims when a valid token is present and
// proceeds either way.
func (a *Auth) OptionalAuth(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if raw, err := bearer(r); err == nil {
			if claims, err := a.Parse(r.Context(), raw); err == nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
		}
		next(w, r, ps)
	}
}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// UserID returns the authenticated user's id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if c, ok := ClaimsFrom(ctx); ok {
		return c.UserID
	}
	return ""
}

// ErrNoUser is returned by RequireUser for anonymous requests.
var ErrNoUser = errors.New("no authenticated user")

// RequireUser returns the caller's claims or an Authentication error.
func RequireUser(ctx context.Context) (*Claims, error) {
	c, ok := ClaimsFrom(ctx)
	if !ok {
		return nil, &apperr.Error{Kind: apperr.KindAuthentication, Msg: "Authentication required", Err: ErrNoUser}
	}
	return c, nil
}
