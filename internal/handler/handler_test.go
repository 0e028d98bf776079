package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/pantry/internal/auth"
	"github.com/dukerupert/pantry/internal/database"
	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/store"
	"github.com/dukerupert/pantry/internal/websocket"
)

var testToday = model.NewDate(2026, time.March, 10)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs map[int64][]websocket.Message
}

func (n *fakeNotifier) BroadcastToUser(userID int64, msg websocket.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.msgs == nil {
		n.msgs = make(map[int64][]websocket.Message)
	}
	n.msgs[userID] = append(n.msgs[userID], msg)
}

func (n *fakeNotifier) last(userID int64) (websocket.Message, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	msgs := n.msgs[userID]
	if len(msgs) == 0 {
		return websocket.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

type testEnv struct {
	users      *store.UserStore
	sessions   *store.SessionStore
	categories *store.CategoryStore
	groceries  *store.GroceryStore
	shopping   *store.ShoppingStore
	recipes    *store.RecipeStore
	push       *store.PushStore
	notifier   *fakeNotifier
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &testEnv{
		users:      store.NewUserStore(db),
		sessions:   store.NewSessionStore(db),
		categories: store.NewCategoryStore(db),
		groceries:  store.NewGroceryStore(db),
		shopping:   store.NewShoppingStore(db),
		recipes:    store.NewRecipeStore(db),
		push:       store.NewPushStore(db),
		notifier:   &fakeNotifier{},
	}
}

func (e *testEnv) user(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := e.users.Create(name, name+"@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *testEnv) grocery(t *testing.T, userID int64, name string, expiry model.Date) *model.GroceryItem {
	t.Helper()
	cat, err := e.categories.GetByName("Other")
	if err != nil || cat == nil {
		t.Fatalf("get category: %v", err)
	}
	g, err := e.groceries.Create(userID, cat.ID, name, expiry, 1)
	if err != nil {
		t.Fatalf("create grocery: %v", err)
	}
	return g
}

// request builds a request as userID (0 for anonymous) with the given path
// values, e.g. "id", "7".
func request(method, target, body string, userID int64, pathValues ...string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if userID != 0 {
		req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: userID}))
	}
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}
	return req
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) errorResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	body := decodeBody[errorResponse](t, rec)
	if body.Kind != kind {
		t.Errorf("kind = %q, want %q", body.Kind, kind)
	}
	if body.Error == "" {
		t.Error("expected error message")
	}
	return body
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
