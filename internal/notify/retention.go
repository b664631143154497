package notify

import (
	"context"
	"log"
	"time"
)

// RetentionPolicy bounds how long and how many notifications are kept.
// Zero values disable the corresponding rule.
type RetentionPolicy struct {
	MaxAge          time.Duration
	MaxPerRecipient int
}

// Purge deletes notifications outside the retention policy and returns how many were removed.
func (s *Service) Purge(ctx context.Context, policy RetentionPolicy) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	var cutoff time.Time
	if policy.MaxAge > 0 {
		cutoff = s.clock().UTC().Add(-policy.MaxAge)
	}
	return s.store.PurgeNotifications(ctx, cutoff, policy.MaxPerRecipient)
}

// RunRetention purges on every tick until ctx is cancelled.
func (s *Service) RunRetention(ctx context.Context, policy RetentionPolicy, interval time.Duration, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Printf("Background Worker Started: purging notifications every %s", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Purge(ctx, policy)
			if err != nil {
				logger.Printf("notification purge failed: %v", err)
				continue
			}
			if removed > 0 {
				logger.Printf("purged %d expired notifications", removed)
			}
		}
	}
}
