package sequencer

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/campusops/devtrack/internal/repository"
)

// tagWidth is the minimum zero-padded width of the numeric part. Values
// beyond four digits widen the field; tags never wrap.
const tagWidth = 4

// Sequencer issues monotonically increasing, collision-free asset tags.
// The read-increment-persist window for one prefix is a single critical
// section; unrelated prefixes do not contend.
type Sequencer struct {
	counters repository.TagCounterRepository
	logger   zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a tag sequencer over durable counter storage.
func New(counters repository.TagCounterRepository, logger zerolog.Logger) *Sequencer {
	return &Sequencer{
		counters: counters,
		logger:   logger.With().Str("component", "tag_sequencer").Logger(),
		locks:    map[string]*sync.Mutex{},
	}
}

// Next reserves and returns the next tag for prefix, e.g. "W12-0042".
// The counter is persisted before the tag is returned: a crash between
// commit and return burns the value rather than risking a duplicate.
func (s *Sequencer) Next(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("tag prefix must not be empty")
	}

	lock := s.prefixLock(prefix)
	lock.Lock()
	defer lock.Unlock()

	value, err := s.counters.ReserveNext(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("reserve tag value for %s: %w", prefix, err)
	}

	tag := Format(prefix, value)
	s.logger.Debug().Str("tag", tag).Msg("tag issued")
	return tag, nil
}

// Format renders a tag from prefix and sequence value.
func Format(prefix string, value int64) string {
	return fmt.Sprintf("%s%0*d", prefix, tagWidth, value)
}

func (s *Sequencer) prefixLock(prefix string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[prefix]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[prefix] = lock
	}
	return lock
}
