package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zonefree41/getfiletax/internal/mail"
	"github.com/zonefree41/getfiletax/internal/payments"
	"github.com/zonefree41/getfiletax/internal/rate"
	"github.com/zonefree41/getfiletax/internal/security"
	"github.com/zonefree41/getfiletax/internal/session"
	"github.com/zonefree41/getfiletax/internal/storage"
	"github.com/zonefree41/getfiletax/internal/uploads"
	"github.com/zonefree41/getfiletax/web"
)

// light params keep the argon2 work factor test-sized
var testArgon2 = security.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// memStore implements both the handlers Store and the session Store against
// maps, mirroring what the Postgres store does per operation.
type memStore struct {
	mu       sync.Mutex
	clock    *fakeClock
	accounts map[uuid.UUID]*storage.Account
	sessions map[string]*storage.Session
	contacts []storage.ContactSubmission
}

func newMemStore(clock *fakeClock) *memStore {
	return &memStore{
		clock:    clock,
		accounts: map[uuid.UUID]*storage.Account{},
		sessions: map[string]*storage.Session{},
	}
}

func (m *memStore) CreateAccount(ctx context.Context, name, email, password, role string) (*storage.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			return nil, storage.ErrDuplicateAccount
		}
	}
	hash, err := security.HashPassword(password, testArgon2)
	if err != nil {
		return nil, err
	}
	account := &storage.Account{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		TaxStatus:    storage.TaxStatusPending,
		CreatedAt:    m.clock.Now(),
	}
	m.accounts[account.ID] = account
	return account, nil
}

func (m *memStore) GetAccountByEmail(ctx context.Context, email string) (*storage.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			return a, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) GetAccountByID(ctx context.Context, id uuid.UUID) (*storage.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return a, nil
}

func (m *memStore) ListAccounts(ctx context.Context) ([]storage.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Account
	for _, a := range m.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (m *memStore) MarkCompleted(ctx context.Context, id uuid.UUID) (*storage.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	a.TaxStatus = storage.TaxStatusCompleted
	return a, nil
}

func (m *memStore) SetResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			a.ResetTokenHash = &tokenHash
			a.ResetTokenExpiresAt = &expiresAt
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *memStore) ConsumeResetToken(ctx context.Context, tokenHash, newPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.ResetTokenHash == nil || *a.ResetTokenHash != tokenHash {
			continue
		}
		if !a.ResetTokenExpiresAt.After(m.clock.Now()) {
			return storage.ErrInvalidOrExpiredToken
		}
		hash, err := security.HashPassword(newPassword, testArgon2)
		if err != nil {
			return err
		}
		a.PasswordHash = hash
		a.ResetTokenHash = nil
		a.ResetTokenExpiresAt = nil
		return nil
	}
	return storage.ErrInvalidOrExpiredToken
}

func (m *memStore) CreateSession(ctx context.Context, tokenHash string, accountID uuid.UUID, kind string, expiresAt time.Time) (*storage.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := &storage.Session{ID: uuid.New(), TokenHash: tokenHash, AccountID: accountID, Kind: kind, ExpiresAt: expiresAt}
	m.sessions[tokenHash] = sess
	return sess, nil
}

func (m *memStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*storage.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[tokenHash]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return sess, nil
}

func (m *memStore) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenHash)
	return nil
}

func (m *memStore) CreateContactSubmission(ctx context.Context, name, email, phone, message string) (*storage.ContactSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := storage.ContactSubmission{ID: uuid.New(), Name: name, Email: email, Phone: phone, Message: message, CreatedAt: m.clock.Now()}
	m.contacts = append(m.contacts, sub)
	return &sub, nil
}

func (m *memStore) ListContactSubmissions(ctx context.Context) ([]storage.ContactSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.ContactSubmission(nil), m.contacts...), nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) Send(ctx context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, html)
	return nil
}

var errSendDown = errors.New("smtp unreachable")

var resetLinkRe = regexp.MustCompile(`/reset-password/([A-Za-z0-9_-]+)`)

func (f *fakeSender) lastResetToken(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatalf("no email sent")
	}
	match := resetLinkRe.FindStringSubmatch(f.sent[len(f.sent)-1])
	if match == nil {
		t.Fatalf("no reset link in email body")
	}
	return match[1]
}

type testApp struct {
	store  *memStore
	clock  *fakeClock
	sender *fakeSender
	router *gin.Engine
	files  *uploads.LocalStorage
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := &fakeClock{now: time.Now()}
	store := newMemStore(clock)
	sender := &fakeSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sessions := &session.Manager{
		Store:    store,
		TokenGen: security.DefaultTokenGenerator{},
		Clock:    clock,
		TTL:      24 * time.Hour,
	}

	mailer := mail.NewMailer(sender, "http://localhost:3000", logger)
	limiter := rate.NewMemory(100, time.Minute)

	files, err := uploads.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("upload dir: %v", err)
	}

	router := gin.New()
	router.SetHTMLTemplate(web.Templates())

	auth := NewAuthHandler(store, sessions, mailer, logger, limiter, time.Hour)
	auth.Clock = clock
	auth.RegisterRoutes(router)

	NewAdminHandler(store, sessions, mailer, logger, files).RegisterRoutes(router)

	plans := payments.NewCatalog("https://pay.example/i", "https://pay.example/b", "https://pay.example/f")
	NewPagesHandler(store, plans, logger).RegisterRoutes(router)

	NewUploadHandler(files, nil, logger, 10).RegisterRoutes(router)

	return &testApp{store: store, clock: clock, sender: sender, router: router, files: files}
}

func (app *testApp) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func (app *testApp) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == session.CookieName && ck.Value != "" {
			return ck
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func (app *testApp) signup(t *testing.T, name, email, password string) *http.Cookie {
	t.Helper()
	w := app.postForm("/signup", url.Values{"name": {name}, "email": {email}, "password": {password}})
	if w.Code != http.StatusOK {
		t.Fatalf("signup failed with status %d", w.Code)
	}
	return sessionCookie(t, w)
}

func (app *testApp) adminLogin(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	w := app.postForm("/admin", url.Values{"email": {email}, "password": {password}})
	if w.Code != http.StatusFound {
		t.Fatalf("admin login failed with status %d", w.Code)
	}
	return sessionCookie(t, w)
}
