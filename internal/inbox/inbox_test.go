package inbox

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/01moynul/servehub/internal/client"
	"github.com/01moynul/servehub/internal/models"
)

// fakeAPI serves a fixed server-side state and records calls. Hooks override
// individual endpoints.
type fakeAPI struct {
	mu            sync.Mutex
	notifications []models.Notification
	calls         map[string]int
	markedIDs     [][]string

	// listGate, when set, holds every list call until it is closed. The page
	// is read from the server state after the gate opens.
	listGate   chan struct{}
	listHook   func(ctx context.Context) (client.ListResult, error)
	countHook  func(ctx context.Context) (int, error)
	markErr    error
	markAllErr error
	deleteErr  error
}

func newFakeAPI(notifications ...models.Notification) *fakeAPI {
	return &fakeAPI{notifications: notifications, calls: map[string]int{}}
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeAPI) unreadLocked() int {
	n := 0
	for _, item := range f.notifications {
		if !item.Read {
			n++
		}
	}
	return n
}

func (f *fakeAPI) List(ctx context.Context, limit int) (client.ListResult, error) {
	f.record("list")
	f.mu.Lock()
	gate := f.listGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.listHook != nil {
		return f.listHook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	page := f.notifications
	if len(page) > limit {
		page = page[:limit]
	}
	out := make([]models.Notification, len(page))
	copy(out, page)
	return client.ListResult{Notifications: out, UnreadCount: f.unreadLocked()}, nil
}

func (f *fakeAPI) UnreadCount(ctx context.Context) (int, error) {
	f.record("count")
	if f.countHook != nil {
		return f.countHook(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unreadLocked(), nil
}

func (f *fakeAPI) MarkRead(_ context.Context, ids []string) error {
	f.record("markRead")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedIDs = append(f.markedIDs, ids)
	if f.markErr != nil {
		return f.markErr
	}
	for _, id := range ids {
		for idx := range f.notifications {
			if f.notifications[idx].ID == id {
				f.notifications[idx].Read = true
			}
		}
	}
	return nil
}

func (f *fakeAPI) MarkAllRead(context.Context) error {
	f.record("markAllRead")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markAllErr != nil {
		return f.markAllErr
	}
	for idx := range f.notifications {
		f.notifications[idx].Read = true
	}
	return nil
}

func (f *fakeAPI) Delete(_ context.Context, id string) error {
	f.record("delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for idx := range f.notifications {
		if f.notifications[idx].ID == id {
			f.notifications = append(f.notifications[:idx], f.notifications[idx+1:]...)
			break
		}
	}
	return nil
}

func notification(id string, read bool, actionURL string) models.Notification {
	n := models.Notification{
		ID:          id,
		RecipientID: "user-1",
		Type:        models.TypeParticipationAccepted,
		Title:       "Title " + id,
		Message:     "Message " + id,
		Read:        read,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if actionURL != "" {
		n.ActionURL = &actionURL
	}
	return n
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestOpenLoadsNewestPage(t *testing.T) {
	var items []models.Notification
	for i := 0; i < 15; i++ {
		items = append(items, notification(string(rune('a'+i)), i%2 == 0, ""))
	}
	api := newFakeAPI(items...)
	box := New(api, quietLogger())

	box.Open(context.Background())
	view := box.Snapshot()
	if !view.Open || view.Loading {
		t.Fatalf("expected open and not loading, got %+v", view)
	}
	if len(view.Notifications) != PageSize {
		t.Fatalf("expected %d notifications, got %d", PageSize, len(view.Notifications))
	}
	if view.UnreadCount != 7 {
		t.Fatalf("expected unread 7, got %d", view.UnreadCount)
	}
}

func TestOpenTwiceDoesNotDuplicate(t *testing.T) {
	api := newFakeAPI(notification("n1", false, ""), notification("n2", true, ""))
	box := New(api, quietLogger())

	box.Open(context.Background())
	box.Close()
	box.Open(context.Background())

	view := box.Snapshot()
	if len(view.Notifications) != 2 {
		t.Fatalf("expected 2 notifications after reopening, got %d", len(view.Notifications))
	}
	if api.count("list") != 2 {
		t.Fatalf("expected one list call per open, got %d", api.count("list"))
	}
}

func TestClickUnreadWithActionNavigatesAndCloses(t *testing.T) {
	api := newFakeAPI(
		notification("n1", false, "/events/e1/beach-cleanup"),
		notification("n2", false, ""),
		notification("n3", false, ""),
	)
	box := New(api, quietLogger())
	box.Open(context.Background())
	if got := box.Snapshot().UnreadCount; got != 3 {
		t.Fatalf("expected unread 3, got %d", got)
	}

	outcome := box.Click(context.Background(), "n1")
	if outcome.NavigateTo != "/events/e1/beach-cleanup" || !outcome.Closed {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	view := box.Snapshot()
	if view.Open {
		t.Fatal("dropdown should close on navigation")
	}
	if view.UnreadCount != 2 {
		t.Fatalf("expected unread 2, got %d", view.UnreadCount)
	}
	if !view.Notifications[0].Read {
		t.Fatal("clicked notification should be read")
	}
	if api.count("markRead") != 1 || len(api.markedIDs[0]) != 1 || api.markedIDs[0][0] != "n1" {
		t.Fatalf("expected one mark-read for n1, got %v", api.markedIDs)
	}
}

func TestClickWithoutActionStaysOpen(t *testing.T) {
	api := newFakeAPI(notification("n1", false, ""))
	box := New(api, quietLogger())
	box.Open(context.Background())

	outcome := box.Click(context.Background(), "n1")
	if outcome != (ClickOutcome{}) {
		t.Fatalf("expected no navigation, got %+v", outcome)
	}
	if !box.Snapshot().Open {
		t.Fatal("dropdown should stay open")
	}
}

func TestClickReadNotificationSkipsServer(t *testing.T) {
	api := newFakeAPI(notification("n1", true, "/events/e1"))
	box := New(api, quietLogger())
	box.Open(context.Background())

	outcome := box.Click(context.Background(), "n1")
	if outcome.NavigateTo != "/events/e1" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if api.count("markRead") != 0 {
		t.Fatal("read notification must not be marked again")
	}
}

func TestClickRollsBackOnFailure(t *testing.T) {
	api := newFakeAPI(notification("n1", false, ""), notification("n2", false, ""))
	api.markErr = errors.New("boom")
	box := New(api, quietLogger())
	box.Open(context.Background())

	box.Click(context.Background(), "n1")

	view := box.Snapshot()
	if view.UnreadCount != 2 {
		t.Fatalf("expected rollback to unread 2, got %d", view.UnreadCount)
	}
	if view.Notifications[0].Read {
		t.Fatal("expected rollback of the read flag")
	}
}

func TestMarkAllReadZeroesBadgeAndResyncs(t *testing.T) {
	api := newFakeAPI(notification("n1", false, ""), notification("n2", false, ""), notification("n3", true, ""))
	box := New(api, quietLogger())
	box.Open(context.Background())

	box.MarkAllRead(context.Background())

	view := box.Snapshot()
	if view.UnreadCount != 0 {
		t.Fatalf("expected unread 0, got %d", view.UnreadCount)
	}
	for _, n := range view.Notifications {
		if !n.Read {
			t.Fatalf("notification %s still unread", n.ID)
		}
	}
	if api.count("list") != 2 {
		t.Fatalf("expected a resync list call, got %d list calls", api.count("list"))
	}
}

func TestMarkAllReadWithNothingUnreadIsNoop(t *testing.T) {
	api := newFakeAPI(notification("n1", true, ""))
	box := New(api, quietLogger())
	box.Open(context.Background())

	box.MarkAllRead(context.Background())
	if api.count("markAllRead") != 0 {
		t.Fatal("expected no server call")
	}
}

func TestMarkAllReadRollsBackOnFailure(t *testing.T) {
	api := newFakeAPI(notification("n1", false, ""), notification("n2", false, ""))
	api.markAllErr = errors.New("boom")
	box := New(api, quietLogger())
	box.Open(context.Background())

	box.MarkAllRead(context.Background())

	view := box.Snapshot()
	if view.UnreadCount != 2 || view.Notifications[0].Read || view.Notifications[1].Read {
		t.Fatalf("expected full rollback, got %+v", view)
	}
}

func TestDeleteUnreadDecrementsBadge(t *testing.T) {
	api := newFakeAPI(notification("n1", false, ""), notification("n2", true, ""))
	box := New(api, quietLogger())
	box.Open(context.Background())

	box.Delete(context.Background(), "n1")

	view := box.Snapshot()
	if len(view.Notifications) != 1 || view.Notifications[0].ID != "n2" {
		t.Fatalf("unexpected notifications %+v", view.Notifications)
	}
	if view.UnreadCount != 0 {
		t.Fatalf("expected unread 0, got %d", view.UnreadCount)
	}
}

func TestDeleteRollsBackOnFailure(t *testing.T) {
	api := newFakeAPI(notification("n1", false, ""), notification("n2", true, ""))
	api.deleteErr = errors.New("boom")
	box := New(api, quietLogger())
	box.Open(context.Background())

	box.Delete(context.Background(), "n1")

	view := box.Snapshot()
	if len(view.Notifications) != 2 || view.UnreadCount != 1 {
		t.Fatalf("expected rollback, got %+v", view)
	}
}

func TestStaleCountResponseIsDiscarded(t *testing.T) {
	api := newFakeAPI()
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	api.countHook = func(ctx context.Context) (int, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			// The first request answers last with an old value.
			<-release
			return 9, nil
		}
		return 4, nil
	}
	box := New(api, quietLogger())

	done := make(chan struct{})
	go func() {
		box.RefreshCount(context.Background())
		close(done)
	}()
	waitFor(t, func() bool { return api.count("count") == 1 })

	box.RefreshCount(context.Background())
	close(release)
	<-done

	if got := box.Snapshot().UnreadCount; got != 4 {
		t.Fatalf("expected the newer count 4, got %d", got)
	}
}

func TestReadIssuedBeforeMutationIsDiscarded(t *testing.T) {
	api := newFakeAPI(notification("n1", false, ""), notification("n2", false, ""))
	box := New(api, quietLogger())
	box.Open(context.Background())

	release := make(chan struct{})
	api.countHook = func(ctx context.Context) (int, error) {
		<-release
		return 2, nil
	}

	done := make(chan struct{})
	go func() {
		box.RefreshCount(context.Background())
		close(done)
	}()
	waitFor(t, func() bool { return api.count("count") == 1 })

	box.Click(context.Background(), "n1")
	close(release)
	<-done

	if got := box.Snapshot().UnreadCount; got != 1 {
		t.Fatalf("expected the optimistic count 1 to survive, got %d", got)
	}
}

func TestFailedOpenClearsLoading(t *testing.T) {
	api := newFakeAPI()
	api.listHook = func(context.Context) (client.ListResult, error) {
		return client.ListResult{}, client.ErrNetwork
	}
	box := New(api, quietLogger())
	box.Open(context.Background())

	view := box.Snapshot()
	if view.Loading || !view.Open {
		t.Fatalf("expected open, not loading, got %+v", view)
	}
}

func TestCloseDoesNotDropLateResponse(t *testing.T) {
	api := newFakeAPI(notification("n1", false, ""))
	release := make(chan struct{})
	api.listHook = func(context.Context) (client.ListResult, error) {
		<-release
		return client.ListResult{Notifications: []models.Notification{notification("n1", false, "")}, UnreadCount: 1}, nil
	}
	box := New(api, quietLogger())

	done := make(chan struct{})
	go func() {
		box.Open(context.Background())
		close(done)
	}()
	waitFor(t, func() bool { return api.count("list") == 1 })
	box.Close()
	close(release)
	<-done

	view := box.Snapshot()
	if view.Open {
		t.Fatal("expected closed")
	}
	if view.UnreadCount != 1 || len(view.Notifications) != 1 {
		t.Fatalf("late response should still apply, got %+v", view)
	}
}

func TestPageHeldAcrossClickIsFetchedAgain(t *testing.T) {
	api := newFakeAPI(notification("a", false, ""), notification("b", false, ""))
	box := New(api, quietLogger())
	box.Open(context.Background())
	box.Close()

	release := make(chan struct{})
	api.mu.Lock()
	api.notifications = append([]models.Notification{notification("c", false, "")}, api.notifications...)
	api.listGate = release
	api.mu.Unlock()

	done := make(chan struct{})
	go func() {
		box.Open(context.Background())
		close(done)
	}()
	waitFor(t, func() bool { return api.count("list") == 2 })

	box.Click(context.Background(), "b")
	close(release)
	<-done

	view := box.Snapshot()
	var ids []string
	for _, n := range view.Notifications {
		ids = append(ids, n.ID)
	}
	if len(ids) != 3 || ids[0] != "c" || ids[1] != "a" || ids[2] != "b" {
		t.Fatalf("expected [c a b], got %v", ids)
	}
	if view.UnreadCount != 2 {
		t.Fatalf("expected unread 2, got %d", view.UnreadCount)
	}
	if !view.Notifications[2].Read {
		t.Fatal("clicked notification should stay read")
	}
	if view.Loading {
		t.Fatal("expected loading cleared")
	}
	if api.count("list") != 3 {
		t.Fatalf("expected one refetch, got %d list calls", api.count("list"))
	}
}

func TestClickWithoutPendingPageDoesNotRefetch(t *testing.T) {
	api := newFakeAPI(notification("a", false, ""))
	box := New(api, quietLogger())
	box.Open(context.Background())

	box.Click(context.Background(), "a")
	if api.count("list") != 1 {
		t.Fatalf("expected no refetch, got %d list calls", api.count("list"))
	}
}

func TestUnauthorizedMarksSessionExpired(t *testing.T) {
	api := newFakeAPI()
	api.countHook = func(context.Context) (int, error) {
		return 0, client.ErrNetwork
	}
	box := New(api, quietLogger())

	box.RefreshCount(context.Background())
	if box.Snapshot().SessionExpired {
		t.Fatal("network errors must not expire the session")
	}

	api.countHook = func(context.Context) (int, error) {
		return 0, &client.APIError{StatusCode: http.StatusUnauthorized, Message: "invalid token"}
	}
	box.RefreshCount(context.Background())
	if !box.Snapshot().SessionExpired {
		t.Fatal("expected the session to be marked expired")
	}
}

func TestToggle(t *testing.T) {
	box := New(newFakeAPI(), quietLogger())
	box.Toggle(context.Background())
	if !box.Snapshot().Open {
		t.Fatal("expected open")
	}
	box.Toggle(context.Background())
	if box.Snapshot().Open {
		t.Fatal("expected closed")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
