package dropdown

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/01moynul/servehub/internal/client"
	"github.com/01moynul/servehub/internal/inbox"
	"github.com/01moynul/servehub/internal/models"
	"github.com/01moynul/servehub/internal/theme"
)

func TestEveryNotificationTypeHasAppearance(t *testing.T) {
	for _, typ := range models.NotificationTypes {
		a, ok := appearances[typ]
		if !ok {
			t.Errorf("no appearance for %s", typ)
			continue
		}
		if a.Icon == "" {
			t.Errorf("empty icon for %s", typ)
		}
	}
	if len(appearances) != len(models.NotificationTypes) {
		t.Errorf("appearance table has %d entries for %d types", len(appearances), len(models.NotificationTypes))
	}
}

func TestUnknownTypeFallsBack(t *testing.T) {
	if got := AppearanceFor("something_new"); got != fallbackAppearance {
		t.Fatalf("expected fallback, got %+v", got)
	}
	if got := AppearanceFor(models.TypeBadgeEarned); got.Color != theme.ColorMagenta {
		t.Fatalf("unexpected appearance %+v", got)
	}
}

type stubAPI struct {
	result client.ListResult
	// gate, when set, holds list calls until closed.
	gate     chan struct{}
	countErr error
}

func (s *stubAPI) List(context.Context, int) (client.ListResult, error) {
	if s.gate != nil {
		<-s.gate
	}
	return s.result, nil
}

func (s *stubAPI) UnreadCount(context.Context) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.result.UnreadCount, nil
}

func (s *stubAPI) MarkRead(context.Context, []string) error { return nil }
func (s *stubAPI) MarkAllRead(context.Context) error { return nil }
func (s *stubAPI) Delete(context.Context, string) error { return nil }

func newTestModel(t *testing.T) (Model, *inbox.Inbox) {
	t.Helper()
	m, box, _ := newTestModelWithAPI(t)
	return m, box
}

func newTestModelWithAPI(t *testing.T) (Model, *inbox.Inbox, *stubAPI) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	url := "/events/e1/beach-cleanup"
	api := &stubAPI{result: client.ListResult{
		UnreadCount: 1,
		Notifications: []models.Notification{
			{
				ID:        "n1",
				Type:      models.TypeParticipationAccepted,
				Title:     "Participation accepted",
				Message:   "Your request to join \"Beach cleanup\" has been accepted.",
				CreatedAt: now.Add(-3 * time.Minute),
				ActionURL: &url,
				Sender:    &models.Sender{Name: "Olivia Organizer"},
			},
		},
	}}
	box := inbox.New(api, log.New(io.Discard, "", 0))
	m := New(box, inbox.NewPoller(box), Options{Now: func() time.Time { return now }})
	return m, box, api
}

func TestViewShowsBadgeAndItems(t *testing.T) {
	m, box := newTestModel(t)
	box.RefreshCount(context.Background())
	if out := m.View(); !strings.Contains(out, "1") {
		t.Fatalf("expected badge in view:\n%s", out)
	}

	box.Open(context.Background())
	out := m.View()
	for _, want := range []string{"Participation accepted", "Olivia Organizer", "3 minutes ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestSelectNavigatesAndCloses(t *testing.T) {
	var navigated string
	m, box := newTestModel(t)
	m.opts.Navigate = func(url string) { navigated = url }
	box.Open(context.Background())

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a click command")
	}
	updated, _ = updated.Update(cmd())

	if navigated != "/events/e1/beach-cleanup" {
		t.Fatalf("navigated to %q", navigated)
	}
	if box.Snapshot().Open {
		t.Fatal("dropdown should close after navigation")
	}
	if box.Snapshot().UnreadCount != 0 {
		t.Fatal("clicked notification should be read")
	}
	_ = updated
}

func TestEscClosesPanel(t *testing.T) {
	m, box := newTestModel(t)
	box.Open(context.Background())

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if box.Snapshot().Open {
		t.Fatal("esc should close the dropdown")
	}
}

func TestSpinnerShowsWhileReloading(t *testing.T) {
	m, box, api := newTestModelWithAPI(t)
	box.Open(context.Background())
	box.Close()

	release := make(chan struct{})
	api.gate = release
	done := make(chan struct{})
	go func() {
		box.Open(context.Background())
		close(done)
	}()
	defer func() {
		close(release)
		<-done
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !box.Snapshot().Loading || !box.Snapshot().Open {
		if time.Now().After(deadline) {
			t.Fatal("dropdown never started loading")
		}
		time.Sleep(time.Millisecond)
	}

	out := m.View()
	if !strings.Contains(out, "Loading") {
		t.Errorf("expected loading row over existing items:\n%s", out)
	}
	if !strings.Contains(out, "Participation accepted") {
		t.Errorf("existing items should stay visible while loading:\n%s", out)
	}
}

func TestExpiredSessionQuits(t *testing.T) {
	m, box, api := newTestModelWithAPI(t)
	api.countErr = &client.APIError{StatusCode: http.StatusUnauthorized, Message: "invalid token"}
	box.RefreshCount(context.Background())

	updated, cmd := m.Update(renderMsg(time.Now()))
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected the program to quit")
	}
	if !updated.(Model).SessionExpired() {
		t.Fatal("expected SessionExpired to be reported")
	}
}
