package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-lines/internal/core"
)

type countingProcessor struct {
	mu     sync.Mutex
	seen   map[uuid.UUID]int
	active atomic.Int32
	peak   atomic.Int32
	fail   uuid.UUID
}

func (p *countingProcessor) ProcessJob(_ context.Context, id uuid.UUID) (core.Outcome, error) {
	n := p.active.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	p.active.Add(-1)

	p.mu.Lock()
	p.seen[id]++
	p.mu.Unlock()
	if id == p.fail {
		return core.Outcome{JobID: id}, errors.New("boom")
	}
	return core.Outcome{JobID: id}, nil
}

func TestQueueProcessesEveryJobOnce(t *testing.T) {
	proc := &countingProcessor{seen: map[uuid.UUID]int{}, fail: uuid.New()}
	var (
		mu     sync.Mutex
		failed int
	)
	q := NewProcessorQueue(proc, nil,
		WithWorkers(3),
		WithQueueSize(2),
		WithProcessTimeout(time.Second),
		WithOnDone(func(_ Job, _ core.Outcome, err error) {
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}),
	)

	ids := []uuid.UUID{proc.fail}
	for i := 0; i < 9; i++ {
		ids = append(ids, uuid.New())
	}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(context.Background(), Job{JobID: id, Source: id.String()}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	proc.mu.Lock()
	defer proc.mu.Unlock()
	require.Len(t, proc.seen, len(ids))
	for _, id := range ids {
		assert.Equal(t, 1, proc.seen[id])
	}
	assert.LessOrEqual(t, proc.peak.Load(), int32(3))
	assert.Equal(t, 1, failed)
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&countingProcessor{seen: map[uuid.UUID]int{}}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{JobID: uuid.New()})
	assert.ErrorIs(t, err, ErrQueueClosed)
}
