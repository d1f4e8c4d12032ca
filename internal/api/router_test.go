package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/health"
	"github.com/openblog/backend/internal/metrics"
	"github.com/openblog/backend/internal/posts"
	"github.com/openblog/backend/internal/websocket"
	"golang.org/x/crypto/bcrypt"
)

type memUserStore struct {
	users map[uuid.UUID]*db.User
}

func (m *memUserStore) Create(_ context.Context, user *db.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return db.ErrEmailExists
		}
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memUserStore) GetByEmail(_ context.Context, email string) (*db.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, db.ErrUserNotFound
}

func (m *memUserStore) GetByID(_ context.Context, id uuid.UUID) (*db.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memUserStore) UpdateAvatar(_ context.Context, id uuid.UUID, avatar string) error {
	u, ok := m.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	u.Avatar = avatar
	return nil
}

type memPostStore struct {
	posts map[uuid.UUID]*db.Post
}

func (m *memPostStore) List(_ context.Context, limit, offset int) ([]*db.Post, int, error) {
	out := []*db.Post{}
	for _, p := range m.posts {
		copied := *p
		out = append(out, &copied)
	}
	return out, len(out), nil
}

func (m *memPostStore) GetByID(_ context.Context, id uuid.UUID) (*db.Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return nil, db.ErrPostNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *memPostStore) Create(_ context.Context, post *db.Post) error {
	copied := *post
	m.posts[post.ID] = &copied
	return nil
}

func (m *memPostStore) Update(_ context.Context, post *db.Post) error {
	if _, ok := m.posts[post.ID]; !ok {
		return db.ErrPostNotFound
	}
	copied := *post
	m.posts[post.ID] = &copied
	return nil
}

func (m *memPostStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.posts[id]; !ok {
		return db.ErrPostNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memPostStore) Search(_ context.Context, query string, limit, offset int) ([]*db.Post, int, error) {
	return []*db.Post{}, 0, nil
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()

	tokens := &auth.TokenConfig{
		AccessSecret:  []byte("router-test-access"),
		RefreshSecret: []byte("router-test-refresh"),
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "openblog",
	}
	authService := auth.NewService(
		&memUserStore{users: make(map[uuid.UUID]*db.User)},
		tokens,
		auth.ServiceOptions{BcryptCost: bcrypt.MinCost, UniformLoginErrors: true},
	)
	cookies := &auth.CookieWriter{AccessMaxAgeSec: 900, RefreshMaxAge: 86400}
	hub := websocket.NewHub(nil)
	go hub.Run()

	checker := health.NewChecker(&health.CheckerConfig{
		StorageCheck: func(ctx context.Context) error { return nil },
		Version:      "test",
	})

	return NewRouter(&RouterConfig{
		AuthHandlers:   auth.NewHandlers(authService, cookies),
		AuthService:    authService,
		PostHandlers:   posts.NewHandlers(&memPostStore{posts: make(map[uuid.UUID]*db.Post)}, nil, websocket.NewEventBroadcaster(hub), nil),
		AvatarHandlers: NewAvatarHandlers(authService, nil, nil),
		HealthHandler:  health.NewHandler(checker),
		WSHandler:      websocket.NewHandler(hub, authService, nil),
		Metrics:        metrics.New(),
	})
}

func post(router http.Handler, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(router http.Handler, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_SessionFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := post(router, "/user/signup", `{"email":"flow@example.com","password":"password123","repeatPassword":"password123","name":"Flow"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %s", rec.Code, rec.Body.String())
	}

	login := post(router, "/user/login", `{"email":"flow@example.com","password":"password123"}`, nil)
	if login.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", login.Code, login.Body.String())
	}
	sessionCookies := login.Result().Cookies()
	if len(sessionCookies) != 2 {
		t.Fatalf("expected 2 session cookies, got %d", len(sessionCookies))
	}

	me := post(router, "/user/me", "", sessionCookies)
	if me.Code != http.StatusOK {
		t.Fatalf("me status = %d: %s", me.Code, me.Body.String())
	}

	var info auth.UserInfo
	if err := json.NewDecoder(me.Body).Decode(&info); err != nil {
		t.Fatalf("failed to decode /user/me: %v", err)
	}
	if info.Email != "flow@example.com" {
		t.Errorf("Email = %q", info.Email)
	}

	signout := post(router, "/user/signout", "", sessionCookies)
	if signout.Code != http.StatusOK {
		t.Fatalf("signout status = %d", signout.Code)
	}
}

func TestRouter_PostFlow(t *testing.T) {
	router := newTestRouter(t)

	post(router, "/user/signup", `{"email":"author@example.com","password":"password123","repeatPassword":"password123","name":"Author"}`, nil)
	login := post(router, "/user/login", `{"email":"author@example.com","password":"password123"}`, nil)
	sessionCookies := login.Result().Cookies()

	// Unauthenticated write is rejected with the uniform envelope
	rec := post(router, "/posts/add", `{"title":"T","content":"C"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated add status = %d, want 401", rec.Code)
	}
	var envelope apperrors.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if envelope.StatusCode != http.StatusUnauthorized {
		t.Errorf("envelope statusCode = %d", envelope.StatusCode)
	}

	// Authenticated create
	rec = post(router, "/posts/add", `{"title":"First","content":"body"}`, sessionCookies)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}

	// Public listing works without cookies
	list := get(router, "/posts", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("list status = %d", list.Code)
	}

	var resp posts.ListResponse
	if err := json.NewDecoder(list.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("total = %d, want 1", resp.Total)
	}
}

func TestRouter_Infra(t *testing.T) {
	router := newTestRouter(t)

	if rec := get(router, "/health/live", nil); rec.Code != http.StatusOK {
		t.Errorf("liveness status = %d", rec.Code)
	}
	if rec := get(router, "/metrics", nil); rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
	// Readiness is 503 here because no db is wired in tests
	if rec := get(router, "/health/ready", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readiness status = %d, want 503", rec.Code)
	}
}
