package inbox

import (
	"context"
	"sync"
	"time"
)

// Poller refreshes the unread badge immediately and then every PollInterval
// for as long as it runs. A tick that arrives while the previous poll is
// still in flight is dropped.
type Poller struct {
	inbox    *Inbox
	interval time.Duration

	mu      sync.Mutex
	polling bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPoller creates a stopped poller for inbox.
func NewPoller(inbox *Inbox) *Poller {
	return &Poller{inbox: inbox, interval: PollInterval}
}

// Start begins polling until Stop is called or ctx is cancelled.
// Calling Start on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop clears the timer and waits for in-flight polls to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}

// Running reports whether the poller is started.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Poll refreshes the badge unless a poll is already in flight. It reports
// whether a request was made.
func (p *Poller) Poll(ctx context.Context) bool {
	p.mu.Lock()
	if p.polling {
		p.mu.Unlock()
		return false
	}
	p.polling = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.polling = false
		p.mu.Unlock()
	}()
	p.inbox.RefreshCount(ctx)
	return true
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.spawn(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.spawn(ctx)
		}
	}
}

// spawn runs one poll in its own goroutine so a slow request overlaps the
// next tick instead of delaying it.
func (p *Poller) spawn(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Poll(ctx)
	}()
}
