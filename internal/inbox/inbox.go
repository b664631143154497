// Package inbox holds the client-side notification state behind the dropdown:
// the newest page, the unread badge, and the open/loading flags.
//
// Every read is stamped with a sequence number. A response is applied only if
// no newer response for the same field was applied and no local mutation
// happened after it was issued. Mutations are optimistic: local state changes
// first, the server call follows, and a failure rolls the change back unless
// newer state arrived in the meantime. A page discarded because of a local
// change is fetched again once the change reaches the server. Errors are
// logged and never retried.
package inbox

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/01moynul/servehub/internal/client"
	"github.com/01moynul/servehub/internal/models"
)

const (
	// PageSize is how many notifications the dropdown shows.
	PageSize = 10
	// PollInterval is the unread-count refresh period while mounted.
	PollInterval = 30 * time.Second
)

// API is the subset of the REST client the inbox uses.
type API interface {
	List(ctx context.Context, limit int) (client.ListResult, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, ids []string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

// View is an immutable snapshot for rendering.
type View struct {
	Notifications []models.Notification
	UnreadCount   int
	Open          bool
	Loading       bool
	// SessionExpired is set once the server rejected the session token.
	SessionExpired bool
}

// ClickOutcome tells the UI what to do after a click.
type ClickOutcome struct {
	// NavigateTo is the action URL to follow, empty when there is none.
	NavigateTo string
	// Closed reports whether the dropdown closed as part of the click.
	Closed bool
}

// Inbox is safe for concurrent use.
type Inbox struct {
	api    API
	logger *log.Logger

	mu            sync.Mutex
	notifications []models.Notification
	unread        int
	open          bool
	loading       bool

	// seq is the last issued stamp. listApplied and countApplied hold the
	// stamp of the newest applied response or mutation for each field.
	seq          uint64
	listApplied  uint64
	countApplied uint64
	// loadingSeq is the stamp of the list request that owns the loading flag.
	loadingSeq uint64
	// gen changes whenever local state changes; rollbacks require it unchanged.
	gen uint64

	listsInFlight int
	pendingWrites int
	// staleList is set when a mutation made an in-flight page obsolete.
	staleList bool

	expired bool
}

// New creates an empty, closed inbox.
func New(api API, logger *log.Logger) *Inbox {
	if logger == nil {
		logger = log.Default()
	}
	return &Inbox{api: api, logger: logger}
}

// Snapshot copies the current state.
func (i *Inbox) Snapshot() View {
	i.mu.Lock()
	defer i.mu.Unlock()
	return View{
		Notifications:  slices.Clone(i.notifications),
		UnreadCount:    i.unread,
		Open:           i.open,
		Loading:        i.loading,
		SessionExpired: i.expired,
	}
}

// RefreshCount fetches the unread badge.
func (i *Inbox) RefreshCount(ctx context.Context) {
	stamp := i.issue()
	count, err := i.api.UnreadCount(ctx)
	if err != nil {
		i.logger.Printf("inbox: refreshing unread count failed: %v", err)
		i.noteError(err)
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if stamp <= i.countApplied {
		return
	}
	i.unread = count
	i.countApplied = stamp
	i.gen++
}

// Open shows the dropdown and loads the newest page.
func (i *Inbox) Open(ctx context.Context) {
	i.mu.Lock()
	i.open = true
	i.loading = true
	stamp := i.beginList()
	i.loadingSeq = stamp
	i.mu.Unlock()

	i.fetchList(ctx, stamp)
}

// Close hides the dropdown. In-flight requests are not cancelled and their
// responses still apply.
func (i *Inbox) Close() {
	i.mu.Lock()
	i.open = false
	i.mu.Unlock()
}

// Toggle opens a closed dropdown and closes an open one.
func (i *Inbox) Toggle(ctx context.Context) {
	i.mu.Lock()
	open := i.open
	i.mu.Unlock()
	if open {
		i.Close()
		return
	}
	i.Open(ctx)
}

// Click handles a click on notification id: an unread item is marked read,
// and an item with an action URL closes the dropdown for navigation.
func (i *Inbox) Click(ctx context.Context, id string) ClickOutcome {
	i.mu.Lock()
	idx := i.indexOf(id)
	if idx < 0 {
		i.mu.Unlock()
		return ClickOutcome{}
	}
	n := i.notifications[idx]

	var outcome ClickOutcome
	if n.HasAction() {
		outcome = ClickOutcome{NavigateTo: *n.ActionURL, Closed: true}
		i.open = false
	}
	if n.Read {
		i.mu.Unlock()
		return outcome
	}

	prev := i.capture()
	i.notifications[idx].Read = true
	i.decrementUnread()
	gen := i.mutate()
	i.mu.Unlock()

	err := i.api.MarkRead(ctx, []string{id})
	if err != nil {
		i.logger.Printf("inbox: marking %s read failed: %v", id, err)
		i.noteError(err)
		i.rollback(prev, gen)
	}
	i.settle(ctx, false)
	return outcome
}

// MarkAllRead flips every loaded notification to read and zeroes the badge.
// It does nothing when there is nothing unread.
func (i *Inbox) MarkAllRead(ctx context.Context) {
	i.mu.Lock()
	if i.unread <= 0 {
		i.mu.Unlock()
		return
	}
	prev := i.capture()
	for idx := range i.notifications {
		i.notifications[idx].Read = true
	}
	i.unread = 0
	gen := i.mutate()
	i.mu.Unlock()

	err := i.api.MarkAllRead(ctx)
	if err != nil {
		i.logger.Printf("inbox: marking all read failed: %v", err)
		i.noteError(err)
		i.rollback(prev, gen)
	}
	i.settle(ctx, err == nil)
}

// Delete removes notification id.
func (i *Inbox) Delete(ctx context.Context, id string) {
	i.mu.Lock()
	idx := i.indexOf(id)
	if idx < 0 {
		i.mu.Unlock()
		return
	}
	prev := i.capture()
	wasUnread := !i.notifications[idx].Read
	i.notifications = slices.Delete(slices.Clone(i.notifications), idx, idx+1)
	if wasUnread {
		i.decrementUnread()
	}
	gen := i.mutate()
	i.mu.Unlock()

	err := i.api.Delete(ctx, id)
	if err != nil {
		i.logger.Printf("inbox: deleting %s failed: %v", id, err)
		i.noteError(err)
		i.rollback(prev, gen)
	}
	i.settle(ctx, err == nil)
}

// settle ends a mutation's server call. The page is fetched again when resync
// is set or when the mutation left a discarded page nobody else will replace.
func (i *Inbox) settle(ctx context.Context, resync bool) {
	i.mu.Lock()
	i.pendingWrites--
	if !i.needsRefetch() && !resync {
		i.mu.Unlock()
		return
	}
	stamp := i.beginList()
	i.mu.Unlock()

	i.fetchList(ctx, stamp)
}

// beginList stamps a list request. Callers hold mu.
func (i *Inbox) beginList() uint64 {
	i.seq++
	i.listsInFlight++
	if i.pendingWrites == 0 {
		// Issued after every local change reached the server.
		i.staleList = false
	}
	return i.seq
}

// needsRefetch reports whether a discarded page must be fetched again now,
// and claims the refetch. Callers hold mu.
func (i *Inbox) needsRefetch() bool {
	if !i.staleList || i.listsInFlight > 0 || i.pendingWrites > 0 {
		return false
	}
	i.staleList = false
	return true
}

func (i *Inbox) fetchList(ctx context.Context, stamp uint64) {
	result, err := i.api.List(ctx, PageSize)

	i.mu.Lock()
	i.listsInFlight--
	if stamp == i.loadingSeq {
		i.loading = false
	}
	if err != nil {
		i.logger.Printf("inbox: loading notifications failed: %v", err)
		if client.IsUnauthorized(err) {
			i.expired = true
		}
	} else {
		if stamp > i.listApplied {
			i.notifications = slices.Clone(result.Notifications)
			i.listApplied = stamp
			i.gen++
		}
		if stamp > i.countApplied {
			i.unread = result.UnreadCount
			i.countApplied = stamp
			i.gen++
		}
	}
	if !i.needsRefetch() {
		i.mu.Unlock()
		return
	}
	next := i.beginList()
	i.mu.Unlock()

	i.fetchList(ctx, next)
}

func (i *Inbox) issue() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.seq++
	return i.seq
}

// mutate records a local change: reads issued before it become stale. Every
// mutate is paired with a settle once the server call returns.
// Callers hold mu.
func (i *Inbox) mutate() uint64 {
	i.seq++
	i.listApplied = i.seq
	i.countApplied = i.seq
	i.gen++
	i.pendingWrites++
	if i.listsInFlight > 0 {
		i.staleList = true
	}
	return i.gen
}

func (i *Inbox) noteError(err error) {
	if !client.IsUnauthorized(err) {
		return
	}
	i.mu.Lock()
	i.expired = true
	i.mu.Unlock()
}

type state struct {
	notifications []models.Notification
	unread        int
}

func (i *Inbox) capture() state {
	return state{notifications: slices.Clone(i.notifications), unread: i.unread}
}

func (i *Inbox) rollback(prev state, gen uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.gen != gen {
		// Newer state arrived; the next poll reconciles.
		return
	}
	i.notifications = prev.notifications
	i.unread = prev.unread
	i.gen++
}

func (i *Inbox) decrementUnread() {
	if i.unread > 0 {
		i.unread--
	}
}

func (i *Inbox) indexOf(id string) int {
	return slices.IndexFunc(i.notifications, func(n models.Notification) bool { return n.ID == id })
}
