package push

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/pantry/internal/database"
	"github.com/dukerupert/pantry/internal/expiry"
	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/store"
)

type fakeSender struct {
	err   error
	sent  []Payload
	calls []string
}

func (f *fakeSender) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	f.calls = append(f.calls, sub.Endpoint)
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, payload)
	return nil
}

type schedulerEnv struct {
	sched      *Scheduler
	sender     *fakeSender
	users      *store.UserStore
	categories *store.CategoryStore
	groceries  *store.GroceryStore
	push       *store.PushStore
	today      model.Date
}

func setupScheduler(t *testing.T) *schedulerEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	e := &schedulerEnv{
		sender:     &fakeSender{},
		users:      store.NewUserStore(db),
		categories: store.NewCategoryStore(db),
		groceries:  store.NewGroceryStore(db),
		push:       store.NewPushStore(db),
		today:      model.NewDate(2026, time.March, 10),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e.sched = NewScheduler(e.sender, e.push, e.groceries, 7, logger)
	e.sched.now = func() time.Time { return time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC) }
	return e
}

func (e *schedulerEnv) user(t *testing.T, name string, groceries map[string]int) int64 {
	t.Helper()
	u, err := e.users.Create(name, name+"@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	other, _ := e.categories.GetByName("Other")
	for g, days := range groceries {
		if _, err := e.groceries.Create(u.ID, other.ID, g, e.today.AddDays(days), 1); err != nil {
			t.Fatalf("create grocery: %v", err)
		}
	}
	if _, err := e.push.CreateSubscription(u.ID, "https://push.example.com/"+name, "k", "a", ""); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	return u.ID
}

func TestSchedulerSendsOneDigestPerDay(t *testing.T) {
	e := setupScheduler(t)
	e.user(t, "alice", map[string]int{"Milk": 1, "Bread": -2, "Rice": 90})

	if n := e.sched.tick(context.Background()); n != 1 {
		t.Fatalf("first tick notified %d, want 1", n)
	}
	if n := e.sched.tick(context.Background()); n != 0 {
		t.Errorf("second tick notified %d, want 0", n)
	}
	if len(e.sender.sent) != 1 {
		t.Fatalf("sent %d payloads, want 1", len(e.sender.sent))
	}
	body := e.sender.sent[0].Body
	if !strings.Contains(body, "1 expiring soon") || !strings.Contains(body, "1 expired") || !strings.Contains(body, "Milk") {
		t.Errorf("body = %q", body)
	}

	e.sched.now = func() time.Time { return time.Date(2026, time.March, 11, 9, 0, 0, 0, time.UTC) }
	if n := e.sched.tick(context.Background()); n != 1 {
		t.Errorf("next day notified %d, want 1", n)
	}
}

func TestSchedulerSkipsFreshPantries(t *testing.T) {
	e := setupScheduler(t)
	e.user(t, "alice", map[string]int{"Rice": 90})

	if n := e.sched.tick(context.Background()); n != 0 {
		t.Errorf("notified %d, want 0", n)
	}
	if len(e.sender.calls) != 0 {
		t.Errorf("sender called %d times, want 0", len(e.sender.calls))
	}
}

func TestSchedulerDropsExpiredSubscriptions(t *testing.T) {
	e := setupScheduler(t)
	e.sender.err = ErrExpired
	uid := e.user(t, "alice", map[string]int{"Milk": 0})

	if n := e.sched.tick(context.Background()); n != 0 {
		t.Errorf("notified %d, want 0", n)
	}
	subs, _ := e.push.ListByUser(uid)
	if len(subs) != 0 {
		t.Errorf("expected expired subscription removed, have %d", len(subs))
	}
	sent, _ := e.push.WasSent(uid, "expiry-2026-03-10")
	if sent {
		t.Error("undelivered digest must not be recorded")
	}
}

func TestSchedulerRetriesAfterSendFailure(t *testing.T) {
	e := setupScheduler(t)
	e.sender.err = errors.New("push service returned 500")
	e.user(t, "alice", map[string]int{"Milk": 0})

	e.sched.tick(context.Background())
	e.sender.err = nil
	if n := e.sched.tick(context.Background()); n != 1 {
		t.Errorf("retry notified %d, want 1", n)
	}
}

func TestDigestPayload(t *testing.T) {
	today := model.NewDate(2026, time.March, 10)
	var items []model.GroceryItem
	for i, name := range []string{"Milk", "Eggs", "Spinach", "Yogurt"} {
		items = append(items, model.GroceryItem{Name: name, ExpiryDate: today.AddDays(i)})
	}

	p := DigestPayload(expiry.Classify(items, today, 7))
	if p.Body != "4 expiring soon: Milk, Eggs, Spinach, ..." {
		t.Errorf("body = %q", p.Body)
	}
	if p.Tag != "expiry-digest" {
		t.Errorf("tag = %q", p.Tag)
	}
}
