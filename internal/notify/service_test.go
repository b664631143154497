package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/01moynul/servehub/internal/models"
)

// memStore keeps notifications in insertion order.
type memStore struct {
	mu        sync.Mutex
	items     []models.Notification
	insertErr error
	lastLimit int
	purgedAt  time.Time
	purgeCap  int
}

func (m *memStore) InsertNotification(_ context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.items = append(m.items, n)
	return nil
}

func (m *memStore) GetNotificationByDedupeKey(_ context.Context, recipientID, key string) (models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.RecipientID == recipientID && n.DedupeKey == key {
			return n, nil
		}
	}
	return models.Notification{}, ErrNotFound
}

func (m *memStore) ListNotifications(_ context.Context, recipientID string, limit int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	var out []models.Notification
	for i := len(m.items) - 1; i >= 0 && len(out) < limit; i-- {
		if m.items[i].RecipientID == recipientID {
			out = append(out, m.items[i])
		}
	}
	return out, nil
}

func (m *memStore) CountUnread(_ context.Context, recipientID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.items {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *memStore) MarkRead(_ context.Context, recipientID string, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	updated := 0
	for _, id := range ids {
		for i := range m.items {
			if m.items[i].ID == id && m.items[i].RecipientID == recipientID && !m.items[i].Read {
				m.items[i].Read = true
				updated++
			}
		}
	}
	return updated, nil
}

func (m *memStore) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	m.mu.Lock()
	var ids []string
	for _, n := range m.items {
		if n.RecipientID == recipientID {
			ids = append(ids, n.ID)
		}
	}
	m.mu.Unlock()
	return m.MarkRead(ctx, recipientID, ids)
}

func (m *memStore) DeleteNotification(_ context.Context, recipientID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.items {
		if n.ID == id && n.RecipientID == recipientID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) PurgeNotifications(_ context.Context, olderThan time.Time, maxPerRecipient int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgedAt = olderThan
	m.purgeCap = maxPerRecipient
	return 0, nil
}

func sequentialIDs() func() string {
	next := 0
	return func() string {
		next++
		return fmt.Sprintf("n%d", next)
	}
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *memStore) {
	store := &memStore{}
	return NewService(store, func() time.Time { return now }, sequentialIDs()), store
}

func TestEmitStoresUnreadNotification(t *testing.T) {
	svc, store := newTestService()

	n, err := svc.Emit(context.Background(), EmitInput{
		RecipientID: " u1 ",
		Type:        models.TypeEventApproved,
		Title:       "Event approved",
		Message:     "Your event \"Beach cleanup\" has been approved.",
		ActionURL:   "/events/e1/beach-cleanup",
		Sender:      &models.Sender{Name: "Ada Admin"},
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if n.ID != "n1" || n.RecipientID != "u1" || n.Read {
		t.Fatalf("unexpected notification %+v", n)
	}
	if !n.CreatedAt.Equal(now) {
		t.Fatalf("created at = %v", n.CreatedAt)
	}
	if !n.HasAction() || *n.ActionURL != "/events/e1/beach-cleanup" {
		t.Fatalf("action url = %v", n.ActionURL)
	}
	if len(store.items) != 1 {
		t.Fatalf("stored %d notifications", len(store.items))
	}
}

func TestEmitWithoutActionURL(t *testing.T) {
	svc, _ := newTestService()
	n, err := svc.Emit(context.Background(), EmitInput{
		RecipientID: "u1",
		Type:        models.TypeBadgeEarned,
		Title:       "Badge earned",
		Message:     "You earned the Helper badge.",
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if n.ActionURL != nil {
		t.Fatalf("expected no action url, got %q", *n.ActionURL)
	}
}

func TestEmitValidation(t *testing.T) {
	tests := []struct {
		name  string
		input EmitInput
	}{
		{"missing recipient", EmitInput{Type: models.TypeEventApproved, Title: "t", Message: "m"}},
		{"unknown type", EmitInput{RecipientID: "u1", Type: "party_invite", Title: "t", Message: "m"}},
		{"missing title", EmitInput{RecipientID: "u1", Type: models.TypeEventApproved, Title: "  ", Message: "m"}},
		{"missing message", EmitInput{RecipientID: "u1", Type: models.TypeEventApproved, Title: "t"}},
		{"title too long", EmitInput{RecipientID: "u1", Type: models.TypeEventApproved, Title: strings.Repeat("x", 256), Message: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService()
			if _, err := svc.Emit(context.Background(), tt.input); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if len(store.items) != 0 {
				t.Fatal("invalid input must not be stored")
			}
		})
	}
}

func TestEmitDedupe(t *testing.T) {
	svc, store := newTestService()
	input := EmitInput{
		RecipientID: "u1",
		Type:        models.TypeParticipationAccepted,
		Title:       "Participation accepted",
		Message:     "m",
		DedupeKey:   "participation:r1:accepted",
	}

	first, err := svc.Emit(context.Background(), input)
	if err != nil {
		t.Fatalf("first emit: %v", err)
	}
	second, err := svc.Emit(context.Background(), input)
	if err != nil {
		t.Fatalf("second emit: %v", err)
	}
	if first.ID != second.ID || len(store.items) != 1 {
		t.Fatalf("dedupe failed: %s vs %s, %d stored", first.ID, second.ID, len(store.items))
	}

	input.RecipientID = "u2"
	if _, err := svc.Emit(context.Background(), input); err != nil {
		t.Fatalf("emit to other recipient: %v", err)
	}
	if len(store.items) != 2 {
		t.Fatalf("dedupe key must be scoped per recipient, %d stored", len(store.items))
	}
}

func TestEmitRecoversFromDedupeRace(t *testing.T) {
	svc, store := newTestService()
	winner := models.Notification{ID: "winner", RecipientID: "u1", DedupeKey: "k"}

	// A store that reports the insert as a conflict after the winner landed.
	racy := &racyStore{memStore: store, winner: winner}
	svc.store = racy

	got, err := svc.Emit(context.Background(), EmitInput{
		RecipientID: "u1", Type: models.TypeBadgeEarned, Title: "t", Message: "m", DedupeKey: "k",
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if got.ID != "winner" {
		t.Fatalf("expected the concurrent record, got %s", got.ID)
	}
}

type racyStore struct {
	*memStore
	winner models.Notification
}

func (r *racyStore) InsertNotification(_ context.Context, _ models.Notification) error {
	r.mu.Lock()
	r.items = append(r.items, r.winner)
	r.mu.Unlock()
	return errors.New("UNIQUE constraint failed")
}

func TestListClampsLimit(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	for _, tt := range []struct{ in, want int }{{0, DefaultListLimit}, {-3, DefaultListLimit}, {25, 25}, {1000, MaxListLimit}} {
		if _, err := svc.List(ctx, "u1", tt.in); err != nil {
			t.Fatalf("list: %v", err)
		}
		if store.lastLimit != tt.want {
			t.Errorf("limit %d -> %d, want %d", tt.in, store.lastLimit, tt.want)
		}
	}

	if _, err := svc.List(ctx, " ", 10); !errors.Is(err, ErrRecipientRequired) {
		t.Fatalf("expected ErrRecipientRequired, got %v", err)
	}
}

func TestMarkReadDedupesIDs(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	n, _ := svc.Emit(ctx, EmitInput{RecipientID: "u1", Type: models.TypeEventApproved, Title: "t", Message: "m"})

	updated, err := svc.MarkRead(ctx, "u1", []string{n.ID, n.ID, " "})
	if err != nil || updated != 1 {
		t.Fatalf("mark read: updated=%d err=%v", updated, err)
	}
	updated, err = svc.MarkRead(ctx, "u1", nil)
	if err != nil || updated != 0 {
		t.Fatalf("empty mark read: updated=%d err=%v", updated, err)
	}
	count, _ := svc.UnreadCount(ctx, "u1")
	if count != 0 {
		t.Fatalf("unread = %d", count)
	}
}

func TestDeleteBlankID(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.Delete(context.Background(), "u1", " "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNilServiceReportsMissingStore(t *testing.T) {
	var svc *Service
	if _, err := svc.Emit(context.Background(), EmitInput{}); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("expected ErrStoreNotConfigured, got %v", err)
	}
}

func TestPurgeUsesClockAndPolicy(t *testing.T) {
	svc, store := newTestService()
	if _, err := svc.Purge(context.Background(), RetentionPolicy{MaxAge: 24 * time.Hour, MaxPerRecipient: 200}); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if !store.purgedAt.Equal(now.Add(-24*time.Hour)) || store.purgeCap != 200 {
		t.Fatalf("purge called with %v / %d", store.purgedAt, store.purgeCap)
	}

	if _, err := svc.Purge(context.Background(), RetentionPolicy{}); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if !store.purgedAt.IsZero() {
		t.Fatal("zero max age must disable the age rule")
	}
}

type failingEmitter struct{ calls int }

func (f *failingEmitter) Emit(context.Context, EmitInput) (models.Notification, error) {
	f.calls++
	return models.Notification{}, errors.New("disk full")
}

func TestNotifierSwallowsErrors(t *testing.T) {
	var buf bytes.Buffer
	emitter := &failingEmitter{}
	n := NewNotifier(emitter, log.New(&buf, "", 0))

	if n.Notify(context.Background(), EmitInput{RecipientID: "u1", Type: models.TypeEventApproved}) {
		t.Fatal("failed emit reported as sent")
	}
	if !strings.Contains(buf.String(), "event_approved") {
		t.Fatalf("expected a warning, got %q", buf.String())
	}

	sent := n.NotifyAll(context.Background(), []string{"a1", "a2"}, func(string) EmitInput {
		return EmitInput{Type: models.TypeEventApprovalRequest}
	})
	if sent != 0 || emitter.calls != 3 {
		t.Fatalf("sent=%d calls=%d", sent, emitter.calls)
	}
}

func TestNotifyAllFansOut(t *testing.T) {
	svc, store := newTestService()
	n := NewNotifier(svc, log.New(&bytes.Buffer{}, "", 0))

	sent := n.NotifyAll(context.Background(), []string{"a1", "a2", "a3"}, func(id string) EmitInput {
		return EmitInput{Type: models.TypeEventApprovalRequest, Title: "Approval needed", Message: "m", DedupeKey: "event:e1:submitted"}
	})
	if sent != 3 || len(store.items) != 3 {
		t.Fatalf("sent=%d stored=%d", sent, len(store.items))
	}
	for _, item := range store.items {
		if item.Type != models.TypeEventApprovalRequest {
			t.Fatalf("type = %s", item.Type)
		}
	}

	var nilNotifier *Notifier
	if nilNotifier.Notify(context.Background(), EmitInput{}) {
		t.Fatal("nil notifier must not report a send")
	}
}
