package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

const StateSwept = "swept"

// Sweep deletes the work directories of unfinished sessions idle for longer
// than olderThan and closes their rows. It returns the swept sessions.
func (s *Store) Sweep(ctx context.Context, olderThan time.Duration) ([]SessionRecord, error) {
	stale, err := s.StaleSessions(ctx, s.now().Add(-olderThan))
	if err != nil {
		return nil, err
	}
	var swept []SessionRecord
	var errs []error
	for _, r := range stale {
		if r.WorkDir != "" {
			if err := os.RemoveAll(r.WorkDir); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", r.WorkDir, err))
				continue
			}
		}
		if err := s.FinishSession(ctx, r.ID, StateSwept, "interrupted run cleaned up"); err != nil {
			errs = append(errs, err)
			continue
		}
		swept = append(swept, r)
	}
	return swept, errors.Join(errs...)
}
