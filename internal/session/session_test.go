package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zonefree41/getfiletax/internal/security"
	"github.com/zonefree41/getfiletax/internal/storage"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

type memStore struct {
	mu       sync.Mutex
	sessions map[string]*storage.Session
	accounts map[uuid.UUID]*storage.Account
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]*storage.Session{},
		accounts: map[uuid.UUID]*storage.Account{},
	}
}

func (m *memStore) CreateSession(ctx context.Context, tokenHash string, accountID uuid.UUID, kind string, expiresAt time.Time) (*storage.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := &storage.Session{
		ID:        uuid.New(),
		TokenHash: tokenHash,
		AccountID: accountID,
		Kind:      kind,
		ExpiresAt: expiresAt,
	}
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

func (m *memStore) GetAccountByID(ctx context.Context, id uuid.UUID) (*storage.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return account, nil
}

func newTestManager(store Store, clock Clock) *Manager {
	return &Manager{
		Store:    store,
		TokenGen: security.DefaultTokenGenerator{},
		Clock:    clock,
		TTL:      24 * time.Hour,
	}
}

func testContext(t *testing.T, cookie string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	if cookie != "" {
		c.Request.AddCookie(&http.Cookie{Name: CookieName, Value: cookie})
	}
	return c, w
}

func issuedToken(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == CookieName && ck.Value != "" {
			return ck.Value
		}
	}
	t.Fatalf("no session cookie issued")
	return ""
}

func TestIssueAndResolve(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, clock)

	accountID := uuid.New()
	c, w := testContext(t, "")
	if err := m.Issue(c, accountID, storage.SessionKindClient); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	token := issuedToken(t, w)

	c2, _ := testContext(t, token)
	sess, err := m.Resolve(c2, storage.SessionKindClient)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if sess.AccountID != accountID {
		t.Fatalf("expected session bound to %s, got %s", accountID, sess.AccountID)
	}
	if got, want := sess.ExpiresAt, clock.now.Add(24*time.Hour); !got.Equal(want) {
		t.Fatalf("expected fixed expiry %v, got %v", want, got)
	}
}

func TestResolveMissingCookie(t *testing.T) {
	m := newTestManager(newMemStore(), &fakeClock{now: time.Now()})

	c, _ := testContext(t, "")
	if _, err := m.Resolve(c, storage.SessionKindClient); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolveExpiredSession(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, clock)

	c, w := testContext(t, "")
	if err := m.Issue(c, uuid.New(), storage.SessionKindClient); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	token := issuedToken(t, w)

	clock.now = clock.now.Add(24*time.Hour + time.Minute)

	c2, _ := testContext(t, token)
	if _, err := m.Resolve(c2, storage.SessionKindClient); err != ErrUnauthenticated {
		t.Fatalf("expected expired session to be treated as absent, got %v", err)
	}
}

func TestGuardsAreDisjoint(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, clock)

	c, w := testContext(t, "")
	if err := m.Issue(c, uuid.New(), storage.SessionKindAdmin); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	adminToken := issuedToken(t, w)

	c2, _ := testContext(t, adminToken)
	if _, err := m.Resolve(c2, storage.SessionKindClient); err != ErrUnauthenticated {
		t.Fatalf("admin session must not satisfy client guard, got %v", err)
	}

	c3, w3 := testContext(t, "")
	if err := m.Issue(c3, uuid.New(), storage.SessionKindClient); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	clientToken := issuedToken(t, w3)

	c4, _ := testContext(t, clientToken)
	if _, err := m.Resolve(c4, storage.SessionKindAdmin); err != ErrUnauthenticated {
		t.Fatalf("client session must not satisfy admin guard, got %v", err)
	}
}

func TestIssueReplacesPriorSession(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, clock)

	c, w := testContext(t, "")
	if err := m.Issue(c, uuid.New(), storage.SessionKindClient); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	first := issuedToken(t, w)

	c2, _ := testContext(t, first)
	if err := m.Issue(c2, uuid.New(), storage.SessionKindClient); err != nil {
		t.Fatalf("second issue failed: %v", err)
	}

	c3, _ := testContext(t, first)
	if _, err := m.Resolve(c3, storage.SessionKindClient); err != ErrUnauthenticated {
		t.Fatalf("expected prior session to be destroyed, got %v", err)
	}
}

func TestDestroyIdempotent(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, clock)

	c, w := testContext(t, "")
	if err := m.Issue(c, uuid.New(), storage.SessionKindClient); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	token := issuedToken(t, w)

	c2, _ := testContext(t, token)
	if err := m.Destroy(c2); err != nil {
		t.Fatalf("destroy failed: %v", err)
	}

	c3, _ := testContext(t, token)
	if err := m.Destroy(c3); err != nil {
		t.Fatalf("second destroy must not error: %v", err)
	}

	c4, _ := testContext(t, token)
	if _, err := m.Resolve(c4, storage.SessionKindClient); err != ErrUnauthenticated {
		t.Fatalf("expected no session after destroy, got %v", err)
	}
}

func TestRequireClientRedirects(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, clock)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/dashboard", m.RequireClient("/login"), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Fatalf("expected redirect to /login, got %q", loc)
	}
}

func TestRequireClientLoadsAccount(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(store, clock)

	account := &storage.Account{ID: uuid.New(), Name: "Alice", Email: "alice@example.com", TaxStatus: storage.TaxStatusPending}
	store.accounts[account.ID] = account

	c, w := testContext(t, "")
	if err := m.Issue(c, account.ID, storage.SessionKindClient); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	token := issuedToken(t, w)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/dashboard", m.RequireClient("/login"), func(c *gin.Context) {
		got, ok := AccountFromContext(c)
		if !ok {
			c.String(http.StatusInternalServerError, "no account")
			return
		}
		c.String(http.StatusOK, got.Email)
	})

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)

	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w2.Code)
	}
	if w2.Body.String() != "alice@example.com" {
		t.Fatalf("expected account email in body, got %q", w2.Body.String())
	}
}
