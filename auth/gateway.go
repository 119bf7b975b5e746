// Package auth checks credentials and registers users.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"mahatour/apperr"
	"mahatour/models"
	"mahatour/store"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var errInvalidCredentials = apperr.Authentication("Invalid credentials")

type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Username      string           `json:"username" validate:"required,min=3,max=40,excludesall= @"`
	Email         string           `json:"email" validate:"required,email"`
	Password      string           `json:"password" validate:"required,min=8,max=72"`
	FullName      string           `json:"fullName" validate:"required,max=120"`
	UserType      models.UserType  `json:"userType" validate:"required,oneof=tourist guide"`
	Phone         string           `json:"phone" validate:"omitempty,max=20"`
	Location      *models.GeoPoint `json:"location"`
	IsTestAccount bool             `json:"isTestAccount"`
}

type Gateway struct {
	users  store.Repo[models.User]
	guides store.Repo[models.GuideProfile]
	log    *zap.Logger
	cost   int
}

func NewGateway(s *store.Store, log *zap.Logger) *Gateway {
	return &Gateway{users: s.Users, guides: s.Guides, log: log.Named("auth"), cost: bcrypt.DefaultCost}
}

// Login looks the user up by username, falling back to email when no
// username was given or it matched nobody. The returned user has no password.
func (g *Gateway) Login(ctx context.Context, c Credentials) (*models.User, error) {
	c.Username = strings.TrimSpace(c.Username)
	c.Email = strings.TrimSpace(c.Email)
	if c.Password == "" || (c.Username == "" && c.Email == "") {
		return nil, apperr.Validation("Username or email and password are required")
	}

	u, err := g.find(ctx, c)
	if err != nil {
		return nil, err
	}

	ok, legacy := checkPassword(u.Password, c.Password)
	if !ok {
		return nil, errInvalidCredentials
	}
	if legacy {
		g.rehash(ctx, u.ID, c.Password)
	}

	clean := u.Sanitized()
	return &clean, nil
}

func (g *Gateway) find(ctx context.Context, c Credentials) (*models.User, error) {
	if c.Username != "" {
		u, err := g.users.FindOne(ctx, store.Filter{"username": c.Username})
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	// New rows store emails lowercased; legacy rows keep them as typed.
	if c.Email != "" {
		emails := []string{c.Email}
		if lower := strings.ToLower(c.Email); lower != c.Email {
			emails = append(emails, lower)
		}
		for _, email := range emails {
			u, err := g.users.FindOne(ctx, store.Filter{"email": email})
			if err == nil {
				return u, nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
		}
	}
	return nil, errInvalidCredentials
}

// checkPassword compares against a bcrypt hash, or against a legacy
// plaintext value in constant time. legacy reports the latter.
func checkPassword(stored, given string) (ok, legacy bool) {
	if _, err := bcrypt.Cost([]byte(stored)); err == nil {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil, false
	}
	if stored == "" {
		return false, false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1, true
}

// rehash replaces a plaintext password with its hash. Failure only costs a
// later retry, so it is logged and swallowed.
func (g *Gateway) rehash(ctx context.Context, userID, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if err != nil {
		g.log.Warn("hashing legacy password failed", zap.String("user", userID), zap.Error(err))
		return
	}
	if err := g.users.Update(ctx, userID, store.Fields{"password": string(hash)}); err != nil {
		g.log.Warn("upgrading legacy password failed", zap.String("user", userID), zap.Error(err))
		return
	}
	g.log.Info("upgraded legacy plaintext password", zap.String("user", userID))
}

// Register creates a user. Guides also get an empty profile; that second
// write is independent and is not rolled back if it fails.
func (g *Gateway) Register(ctx context.Context, reg Registration) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), g.cost)
	if err != nil {
		return nil, apperr.Validation("password cannot be used")
	}

	u := &models.User{
		Username:      strings.TrimSpace(reg.Username),
		Email:         strings.ToLower(strings.TrimSpace(reg.Email)),
		Password:      string(hash),
		FullName:      strings.TrimSpace(reg.FullName),
		UserType:      reg.UserType,
		Phone:         reg.Phone,
		Location:      reg.Location,
		IsTestAccount: reg.IsTestAccount,
		CreatedAt:     time.Now().UTC(),
	}
	if err := g.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("Username or email already registered")
		}
		return nil, err
	}

	if u.UserType == models.Guide {
		profile := &models.GuideProfile{
			UserID:      u.ID,
			Languages:   []string{},
			Specialties: []string{},
			CreatedAt:   u.CreatedAt,
		}
		if err := g.guides.Create(ctx, profile); err != nil {
			g.log.Error("creating guide profile failed", zap.String("user", u.ID), zap.Error(err))
			return nil, apperr.Storage("guideProfiles.create", err)
		}
	}

	clean := u.Sanitized()
	return &clean, nil
}

// User returns the sanitized user with id.
func (g *Gateway) User(ctx context.Context, id string) (*models.User, error) {
	u, err := g.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, err
	}
	clean := u.Sanitized()
	return &clean, nil
}
