package sequencer

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campusops/devtrack/internal/models"
	"github.com/campusops/devtrack/internal/repository"
)

func newTestSequencer(t *testing.T) (*Sequencer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.TagCounter{}))

	return New(repository.NewTagCounterRepository(db), zerolog.Nop()), db
}

func TestNextIssuesSequentialTags(t *testing.T) {
	seq, _ := newTestSequencer(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		tag, err := seq.Next(ctx, "W12-")
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("W12-%04d", i), tag)
	}
}

func TestNextConcurrentCallersNeverCollide(t *testing.T) {
	seq, _ := newTestSequencer(t)
	ctx := context.Background()

	const workers = 10
	const perWorker = 10

	var mu sync.Mutex
	tags := map[string]bool{}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				tag, err := seq.Next(ctx, "W12-")
				require.NoError(t, err)
				mu.Lock()
				require.False(t, tags[tag], "tag %s issued twice", tag)
				tags[tag] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, tags, workers*perWorker)
	for i := 1; i <= workers*perWorker; i++ {
		require.True(t, tags[fmt.Sprintf("W12-%04d", i)], "missing tag value %d", i)
	}
}

func TestNextIndependentPrefixes(t *testing.T) {
	seq, _ := newTestSequencer(t)
	ctx := context.Background()

	tagA, err := seq.Next(ctx, "W12-")
	require.NoError(t, err)
	tagB, err := seq.Next(ctx, "E07-")
	require.NoError(t, err)

	require.Equal(t, "W12-0001", tagA)
	require.Equal(t, "E07-0001", tagB)
}

func TestNextWidensBeyondFourDigits(t *testing.T) {
	seq, db := newTestSequencer(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.TagCounter{Prefix: "W12-", NextValue: 9999}).Error)

	tag, err := seq.Next(ctx, "W12-")
	require.NoError(t, err)
	require.Equal(t, "W12-9999", tag)

	tag, err = seq.Next(ctx, "W12-")
	require.NoError(t, err)
	require.Equal(t, "W12-10000", tag)
}

func TestNextRejectsEmptyPrefix(t *testing.T) {
	seq, _ := newTestSequencer(t)
	_, err := seq.Next(context.Background(), "")
	require.Error(t, err)
}
