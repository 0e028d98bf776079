package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/pantry/internal/expiry"
	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/store"
)

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// Scheduler sends each subscribed user at most one expiry digest per day.
type Scheduler struct {
	mu          sync.RWMutex
	sender      Sender
	push        *store.PushStore
	groceries   *store.GroceryStore
	horizonDays int
	interval    time.Duration
	now         func() time.Time
	logger      *slog.Logger
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewScheduler(sender Sender, pushStore *store.PushStore, groceryStore *store.GroceryStore, horizonDays int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sender:      sender,
		push:        pushStore,
		groceries:   groceryStore,
		horizonDays: horizonDays,
		interval:    time.Hour,
		now:         time.Now,
		logger:      logger,
	}
}

// Start runs one pass immediately and then one per interval until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// tick returns the number of users that received a digest.
func (s *Scheduler) tick(ctx context.Context) int {
	userIDs, err := s.push.ListUserIDs()
	if err != nil {
		s.logger.Error("list subscribed users", "error", err)
		return 0
	}

	today := model.DateOf(s.now())
	notified := 0
	for _, uid := range userIDs {
		if ctx.Err() != nil {
			break
		}
		if s.sendDigest(ctx, uid, today) {
			notified++
		}
	}
	return notified
}

func (s *Scheduler) sendDigest(ctx context.Context, userID int64, today model.Date) bool {
	refID := "expiry-" + today.String()
	sent, err := s.push.WasSent(userID, refID)
	if err != nil {
		s.logger.Error("check sent digest", "user_id", userID, "error", err)
		return false
	}
	if sent {
		return false
	}

	items, err := s.groceries.List(userID, store.GroceryFilter{})
	if err != nil {
		s.logger.Error("list groceries for digest", "user_id", userID, "error", err)
		return false
	}
	ws := expiry.Classify(items, today, s.horizonDays)
	if ws.ExpiredCount == 0 && ws.ExpiringSoonCount == 0 {
		return false
	}

	subs, err := s.push.ListByUser(userID)
	if err != nil {
		s.logger.Error("list push subscriptions", "user_id", userID, "error", err)
		return false
	}

	payload := DigestPayload(ws)
	delivered := 0
	for i := range subs {
		err := s.sender.Send(ctx, &subs[i], payload)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrExpired):
			if err := s.push.DeleteByEndpoint(subs[i].Endpoint); err != nil {
				s.logger.Error("remove expired subscription", "error", err)
			}
		default:
			s.logger.Warn("send expiry digest", "user_id", userID, "subscription_id", subs[i].ID, "error", err)
		}
	}
	if delivered == 0 {
		return false
	}

	if err := s.push.RecordSent(userID, refID); err != nil {
		s.logger.Error("record sent digest", "user_id", userID, "error", err)
	}
	s.logger.Info("expiry digest sent", "user_id", userID, "devices", delivered)
	return true
}

// DigestPayload summarizes a warning set as a single notification.
func DigestPayload(ws expiry.WarningSet) Payload {
	var parts []string
	if ws.ExpiringSoonCount > 0 {
		parts = append(parts, fmt.Sprintf("%d expiring soon", ws.ExpiringSoonCount))
	}
	if ws.ExpiredCount > 0 {
		parts = append(parts, fmt.Sprintf("%d expired", ws.ExpiredCount))
	}
	body := strings.Join(parts, ", ")

	names := ws.Names()
	if len(names) > 3 {
		names = append(names[:3:3], "...")
	}
	if len(names) > 0 {
		body += ": " + strings.Join(names, ", ")
	}

	return Payload{
		Title: "Groceries need attention",
		Body:  body,
		URL:   "/groceries",
		Tag:   "expiry-digest",
	}
}
