package handler

import (
	"net/http"
	"strings"
	"testing"

	"github.com/dukerupert/pantry/internal/auth"
	"github.com/dukerupert/pantry/internal/middleware"
)

type countingUsers struct{ n int }

func (c *countingUsers) UserRegistered() { c.n++ }

func newAuthHandler(e *testEnv) (*AuthHandler, *countingUsers) {
	c := &countingUsers{}
	return NewAuthHandler(e.users, e.sessions, c, discardLogger()), c
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestRegister(t *testing.T) {
	e := setupEnv(t)
	h, counter := newAuthHandler(e)

	rec := serve(h.Register, request("POST", "/register",
		`{"username":" alice ","email":"Alice@Example.com","password":"longenough"}`, 0))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response must not expose the password hash")
	}

	cookie := sessionCookie(t, rec.Result())
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	sess, err := e.sessions.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		t.Fatalf("session not stored: %v", err)
	}

	u, _ := e.users.GetByEmail("alice@example.com")
	if u == nil || u.Username != "alice" {
		t.Fatalf("user = %+v", u)
	}
	if err := auth.CheckPassword(u.PasswordHash, "longenough"); err != nil {
		t.Error("stored hash does not match password")
	}
	if counter.n != 1 {
		t.Errorf("registrations counted = %d, want 1", counter.n)
	}
}

func TestRegisterValidation(t *testing.T) {
	e := setupEnv(t)
	h, _ := newAuthHandler(e)

	tests := []struct {
		name string
		body string
	}{
		{"short password", `{"username":"bob","email":"bob@example.com","password":"short"}`},
		{"bad email", `{"username":"bob","email":"not-an-email","password":"longenough"}`},
		{"blank username", `{"username":"   ","email":"bob@example.com","password":"longenough"}`},
		{"missing fields", `{}`},
		{"invalid json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h.Register, request("POST", "/register", tt.body, 0))
			assertError(t, rec, http.StatusBadRequest, "invalid_input")
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	e := setupEnv(t)
	h, _ := newAuthHandler(e)
	body := `{"username":"alice","email":"alice@example.com","password":"longenough"}`

	serve(h.Register, request("POST", "/register", body, 0))
	rec := serve(h.Register, request("POST", "/register", body, 0))
	assertError(t, rec, http.StatusConflict, "conflict")
}

func TestLogin(t *testing.T) {
	e := setupEnv(t)
	h, _ := newAuthHandler(e)
	serve(h.Register, request("POST", "/register",
		`{"username":"alice","email":"alice@example.com","password":"longenough"}`, 0))

	rec := serve(h.Login, request("POST", "/login", `{"email":"ALICE@example.com","password":"longenough"}`, 0))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	sessionCookie(t, rec.Result())
}

func TestLoginFailuresLookAlike(t *testing.T) {
	e := setupEnv(t)
	h, _ := newAuthHandler(e)
	serve(h.Register, request("POST", "/register",
		`{"username":"alice","email":"alice@example.com","password":"longenough"}`, 0))

	wrong := assertError(t, serve(h.Login, request("POST", "/login",
		`{"email":"alice@example.com","password":"wrongpassword"}`, 0)), http.StatusUnauthorized, "invalid_credentials")
	unknown := assertError(t, serve(h.Login, request("POST", "/login",
		`{"email":"nobody@example.com","password":"longenough"}`, 0)), http.StatusUnauthorized, "invalid_credentials")

	if wrong.Error != unknown.Error {
		t.Errorf("messages differ: %q vs %q", wrong.Error, unknown.Error)
	}
}

func TestLogout(t *testing.T) {
	e := setupEnv(t)
	h, _ := newAuthHandler(e)
	u := e.user(t, "alice")
	sess, _ := e.sessions.Create(u.ID)

	req := request("POST", "/logout", "", 0)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: u.ID, SessionID: sess.ID}))
	rec := serve(h.Logout, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got, _ := e.sessions.GetByToken(sess.Token); got != nil {
		t.Error("session should be deleted")
	}
	if c := sessionCookie(t, rec.Result()); c.MaxAge >= 0 {
		t.Errorf("cookie MaxAge = %d, want negative", c.MaxAge)
	}
}

func TestMe(t *testing.T) {
	e := setupEnv(t)
	h, _ := newAuthHandler(e)
	u := e.user(t, "alice")

	rec := serve(h.Me, request("GET", "/api/me", "", u.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeBody[map[string]any](t, rec)
	if got["username"] != "alice" {
		t.Errorf("username = %v", got["username"])
	}
}
