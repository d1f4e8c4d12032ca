package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/openblog/backend/internal/errors"
)

func newTestHandlers(t *testing.T) (*Handlers, *Service) {
	t.Helper()
	svc, _ := newTestService(true)
	cookies := &CookieWriter{
		Secure:          false,
		AccessMaxAgeSec: 15 * 60,
		RefreshMaxAge:   7 * 24 * 60 * 60,
	}
	return NewHandlers(svc, cookies), svc
}

func doJSON(t *testing.T, handler apperrors.Handler, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	apperrors.HandleFunc(handler)(rec, req)
	return rec
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignupHandler(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := doJSON(t, h.Signup, http.MethodPost, "/user/signup",
		`{"email":"test@example.com","password":"password123","repeatPassword":"password123","name":"Test User"}`, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	// Signup must not start a session
	if len(rec.Result().Cookies()) != 0 {
		t.Error("signup should not set cookies")
	}

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if info.Email != "test@example.com" || info.Name != "Test User" {
		t.Errorf("unexpected user info: %+v", info)
	}

	// Duplicate email
	rec = doJSON(t, h.Signup, http.MethodPost, "/user/signup",
		`{"email":"test@example.com","password":"password123","repeatPassword":"password123","name":"Other"}`, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d, want 409", rec.Code)
	}
}

func TestSignupHandler_Validation(t *testing.T) {
	h, _ := newTestHandlers(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"missing email", `{"password":"password123","repeatPassword":"password123","name":"Test"}`},
		{"short password", `{"email":"a@b.co","password":"short","name":"Test"}`},
		{"password mismatch", `{"email":"a@b.co","password":"password123","repeatPassword":"different123","name":"Test"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h.Signup, http.MethodPost, "/user/signup", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}

			var resp apperrors.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode envelope: %v", err)
			}
			if resp.StatusCode != http.StatusBadRequest || resp.Message == "" {
				t.Errorf("unexpected envelope: %+v", resp)
			}
		})
	}
}

func TestLoginHandler_SetsCookies(t *testing.T) {
	h, _ := newTestHandlers(t)

	doJSON(t, h.Signup, http.MethodPost, "/user/signup",
		`{"email":"test@example.com","password":"password123","repeatPassword":"password123","name":"Test User"}`, nil)

	rec := doJSON(t, h.Login, http.MethodPost, "/user/login",
		`{"email":"test@example.com","password":"password123"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	cookies := rec.Result().Cookies()
	access := findCookie(cookies, AccessCookieName)
	refresh := findCookie(cookies, RefreshCookieName)

	if access == nil || refresh == nil {
		t.Fatal("expected both session cookies")
	}
	if !access.HttpOnly || !refresh.HttpOnly {
		t.Error("session cookies must be httpOnly")
	}
	if access.Secure {
		t.Error("cookies should not be Secure outside production")
	}
	if access.Path != "/" {
		t.Errorf("access cookie path = %q, want /", access.Path)
	}
	if access.MaxAge != 15*60 {
		t.Errorf("access cookie MaxAge = %d, want %d", access.MaxAge, 15*60)
	}
	if refresh.MaxAge != 7*24*60*60 {
		t.Errorf("refresh cookie MaxAge = %d, want %d", refresh.MaxAge, 7*24*60*60)
	}
}

func TestLoginHandler_WrongPassword(t *testing.T) {
	h, _ := newTestHandlers(t)

	doJSON(t, h.Signup, http.MethodPost, "/user/signup",
		`{"email":"test@example.com","password":"password123","repeatPassword":"password123","name":"Test User"}`, nil)

	rec := doJSON(t, h.Login, http.MethodPost, "/user/login",
		`{"email":"test@example.com","password":"wrongpassword"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("failed login should not set cookies")
	}

	// Unknown email looks identical in uniform mode
	rec2 := doJSON(t, h.Login, http.MethodPost, "/user/login",
		`{"email":"nobody@example.com","password":"password123"}`, nil)
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec2.Code)
	}
	if rec.Body.String() != rec2.Body.String() {
		t.Error("unknown-email and wrong-password responses should be identical")
	}
}

func TestRefreshHandler(t *testing.T) {
	h, _ := newTestHandlers(t)

	doJSON(t, h.Signup, http.MethodPost, "/user/signup",
		`{"email":"test@example.com","password":"password123","repeatPassword":"password123","name":"Test User"}`, nil)
	login := doJSON(t, h.Login, http.MethodPost, "/user/login",
		`{"email":"test@example.com","password":"password123"}`, nil)

	refreshCookie := findCookie(login.Result().Cookies(), RefreshCookieName)
	if refreshCookie == nil {
		t.Fatal("login did not set refresh cookie")
	}

	rec := doJSON(t, h.Refresh, http.MethodPost, "/user/refresh", "", []*http.Cookie{refreshCookie})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	cookies := rec.Result().Cookies()
	if findCookie(cookies, AccessCookieName) == nil || findCookie(cookies, RefreshCookieName) == nil {
		t.Error("refresh should rotate both cookies")
	}
}

func TestRefreshHandler_Failures(t *testing.T) {
	h, _ := newTestHandlers(t)

	tests := []struct {
		name    string
		cookies []*http.Cookie
	}{
		{"missing cookie", nil},
		{"garbage token", []*http.Cookie{{Name: RefreshCookieName, Value: "garbage"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h.Refresh, http.MethodPost, "/user/refresh", "", tt.cookies)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}

			// Failed refresh clears the stale access cookie
			access := findCookie(rec.Result().Cookies(), AccessCookieName)
			if access == nil {
				t.Fatal("expected access cookie to be cleared")
			}
			if access.Value != "" || access.MaxAge >= 0 {
				t.Errorf("access cookie not expired: value=%q maxAge=%d", access.Value, access.MaxAge)
			}
		})
	}
}

func TestSignoutHandler_Idempotent(t *testing.T) {
	h, _ := newTestHandlers(t)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, h.Signout, http.MethodPost, "/user/signout", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("signout %d status = %d, want 200", i, rec.Code)
		}

		cookies := rec.Result().Cookies()
		for _, name := range []string{AccessCookieName, RefreshCookieName} {
			c := findCookie(cookies, name)
			if c == nil {
				t.Fatalf("expected %s to be cleared", name)
			}
			if c.Value != "" || c.MaxAge >= 0 {
				t.Errorf("%s not expired: value=%q maxAge=%d", name, c.Value, c.MaxAge)
			}
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	h, svc := newTestHandlers(t)

	doJSON(t, h.Signup, http.MethodPost, "/user/signup",
		`{"email":"test@example.com","password":"password123","repeatPassword":"password123","name":"Test User"}`, nil)
	login := doJSON(t, h.Login, http.MethodPost, "/user/login",
		`{"email":"test@example.com","password":"password123"}`, nil)
	accessCookie := findCookie(login.Result().Cookies(), AccessCookieName)

	var gotIdentity *Identity
	protected := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// Valid cookie
	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	req.AddCookie(accessCookie)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotIdentity == nil || gotIdentity.Email != "test@example.com" {
		t.Errorf("identity not attached: %+v", gotIdentity)
	}

	// Missing and invalid cookies are rejected without touching the session
	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"invalid token", &http.Cookie{Name: AccessCookieName, Value: "garbage"}},
		{"refresh token as access", findCookie(login.Result().Cookies(), RefreshCookieName)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
			if tt.cookie != nil {
				req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: tt.cookie.Value})
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Error("auth gate must not mutate cookies")
			}
		})
	}
}

func TestMeHandler(t *testing.T) {
	h, svc := newTestHandlers(t)

	doJSON(t, h.Signup, http.MethodPost, "/user/signup",
		`{"email":"test@example.com","password":"password123","repeatPassword":"password123","name":"Test User"}`, nil)
	login := doJSON(t, h.Login, http.MethodPost, "/user/login",
		`{"email":"test@example.com","password":"password123"}`, nil)
	accessCookie := findCookie(login.Result().Cookies(), AccessCookieName)

	handler := Middleware(svc)(apperrors.HandleFunc(h.Me))

	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	req.AddCookie(accessCookie)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if info.Email != "test@example.com" {
		t.Errorf("Email = %q", info.Email)
	}
}
