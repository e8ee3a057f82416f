// Package session issues and validates the server-side browser sessions that
// gate the client dashboard and the admin area. A browser holds only an opaque
// cookie token; the store keeps the sha256 of it next to the bound account.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zonefree41/getfiletax/internal/security"
	"github.com/zonefree41/getfiletax/internal/storage"
)

const CookieName = "portal_session"

const accountContextKey = "portal.account"

// ErrUnauthenticated covers every failure mode the same way: missing cookie,
// unknown token, expired session, wrong session kind.
var ErrUnauthenticated = errors.New("unauthenticated")

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Store interface {
	CreateSession(ctx context.Context, tokenHash string, accountID uuid.UUID, kind string, expiresAt time.Time) (*storage.Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*storage.Session, error)
	DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error
	GetAccountByID(ctx context.Context, id uuid.UUID) (*storage.Account, error)
}

type Manager struct {
	Store    Store
	TokenGen security.TokenGenerator
	Clock    Clock
	TTL      time.Duration
	Secure   bool
}

func NewManager(store Store, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		Store:    store,
		TokenGen: security.DefaultTokenGenerator{},
		Clock:    systemClock{},
		TTL:      ttl,
		Secure:   secure,
	}
}

// Issue creates a fresh session and binds it to the browser via cookie. Any
// session the browser already held is destroyed first: one active session per
// browser context. The lifetime is fixed at creation and never renewed.
func (m *Manager) Issue(c *gin.Context, accountID uuid.UUID, kind string) error {
	if prev, err := c.Cookie(CookieName); err == nil && prev != "" {
		if err := m.Store.DeleteSessionByTokenHash(c.Request.Context(), security.HashToken(prev)); err != nil {
			return err
		}
	}

	token, hash, err := m.TokenGen.New()
	if err != nil {
		return err
	}

	expiresAt := m.Clock.Now().Add(m.TTL)
	if _, err := m.Store.CreateSession(c.Request.Context(), hash, accountID, kind, expiresAt); err != nil {
		return err
	}

	c.SetCookie(CookieName, token, int(m.TTL/time.Second), "/", "", m.Secure, true)
	return nil
}

// Resolve returns the session bound to the request cookie if it exists, has
// not expired and matches the wanted kind. An admin session never satisfies a
// client guard and vice versa.
func (m *Manager) Resolve(c *gin.Context, kind string) (*storage.Session, error) {
	token, err := c.Cookie(CookieName)
	if err != nil || token == "" {
		return nil, ErrUnauthenticated
	}

	sess, err := m.Store.GetSessionByTokenHash(c.Request.Context(), security.HashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	if !sess.ExpiresAt.After(m.Clock.Now()) {
		return nil, ErrUnauthenticated
	}
	if sess.Kind != kind {
		return nil, ErrUnauthenticated
	}
	return sess, nil
}

// Destroy removes the session referenced by the cookie and clears the cookie.
// Destroying twice is not an error.
func (m *Manager) Destroy(c *gin.Context) error {
	if token, err := c.Cookie(CookieName); err == nil && token != "" {
		if err := m.Store.DeleteSessionByTokenHash(c.Request.Context(), security.HashToken(token)); err != nil {
			return err
		}
	}
	c.SetCookie(CookieName, "", -1, "/", "", m.Secure, true)
	return nil
}

// RequireClient guards client routes; unauthenticated requests are redirected
// to the client login page. The resolved account is placed in the gin context.
func (m *Manager) RequireClient(loginPath string) gin.HandlerFunc {
	return m.require(storage.SessionKindClient, loginPath)
}

// RequireAdmin guards the admin area; failures redirect to the admin login
// entry point, never exposing why access was denied.
func (m *Manager) RequireAdmin(loginPath string) gin.HandlerFunc {
	return m.require(storage.SessionKindAdmin, loginPath)
}

func (m *Manager) require(kind, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := m.Resolve(c, kind)
		if err != nil {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}

		account, err := m.Store.GetAccountByID(c.Request.Context(), sess.AccountID)
		if err != nil {
			// Fail closed: a session without a live account authorizes nothing.
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}

		c.Set(accountContextKey, account)
		c.Next()
	}
}

// AccountFromContext returns the account resolved by a guard.
func AccountFromContext(c *gin.Context) (*storage.Account, bool) {
	v, ok := c.Get(accountContextKey)
	if !ok {
		return nil, false
	}
	account, ok := v.(*storage.Account)
	return account, ok
}
