package handler

import (
	"net/http"
	"testing"

	"github.com/dukerupert/pantry/internal/model"
)

const testSubscription = `{"endpoint":"https://push.example.com/abc","p256dh":"BPk","auth":"c2VjcmV0","device_name":"Phone"}`

func TestPushVAPIDKey(t *testing.T) {
	e := setupEnv(t)

	h := NewPushHandler(e.push, "", discardLogger())
	rec := serve(h.GetVAPIDKey, request("GET", "/api/push/vapid-key", "", 1))
	assertError(t, rec, http.StatusServiceUnavailable, "configuration")

	h = NewPushHandler(e.push, "public-key", discardLogger())
	rec = serve(h.GetVAPIDKey, request("GET", "/api/push/vapid-key", "", 1))
	body := decodeBody[map[string]string](t, rec)
	if body["public_key"] != "public-key" {
		t.Errorf("public_key = %q", body["public_key"])
	}
}

func TestPushSubscribeLifecycle(t *testing.T) {
	e := setupEnv(t)
	h := NewPushHandler(e.push, "public-key", discardLogger())
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")

	rec := serve(h.Subscribe, request("POST", "/api/push/subscriptions", testSubscription, alice.ID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("subscribe status = %d, body %s", rec.Code, rec.Body.String())
	}
	sub := decodeBody[model.PushSubscription](t, rec)
	if sub.DeviceName != "Phone" || sub.UserID != alice.ID {
		t.Errorf("subscription = %+v", sub)
	}

	rec = serve(h.ListSubscriptions, request("GET", "/api/push/subscriptions", "", alice.ID))
	if subs := decodeBody[[]model.PushSubscription](t, rec); len(subs) != 1 {
		t.Errorf("listed %d subscriptions, want 1", len(subs))
	}

	rec = serve(h.Unsubscribe, request("DELETE", "/", "", bob.ID, "id", itoa(sub.ID)))
	assertError(t, rec, http.StatusNotFound, "not_found")

	rec = serve(h.Unsubscribe, request("DELETE", "/", "", alice.ID, "id", itoa(sub.ID)))
	if rec.Code != http.StatusNoContent {
		t.Errorf("unsubscribe status = %d", rec.Code)
	}
}

func TestPushSubscribeValidation(t *testing.T) {
	e := setupEnv(t)
	h := NewPushHandler(e.push, "public-key", discardLogger())
	u := e.user(t, "alice")

	tests := []struct {
		name string
		body string
	}{
		{"missing endpoint", `{"p256dh":"k","auth":"a"}`},
		{"bad endpoint", `{"endpoint":"not a url","p256dh":"k","auth":"a"}`},
		{"missing keys", `{"endpoint":"https://push.example.com/x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h.Subscribe, request("POST", "/api/push/subscriptions", tt.body, u.ID))
			assertError(t, rec, http.StatusBadRequest, "invalid_input")
		})
	}
}
