package frontier

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cellarium/catalog-cli/internal/model"
)

// ErrEmpty is returned by Next when no entry is available.
var ErrEmpty = eris.New("frontier: queue empty")

// DefaultMaxAttempts bounds how often a failing entry is re-queued before
// it is dropped for operator attention.
const DefaultMaxAttempts = 3

type item struct {
	entry model.QueueEntry
	seq   int64 // FIFO tiebreak within a priority level
}

type queue []*item

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].entry.Priority != q[j].entry.Priority {
		return q[i].entry.Priority > q[j].entry.Priority
	}
	return q[i].seq < q[j].seq
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(*item)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// Frontier is the crawl queue: priority-ordered, deduplicated against the
// seen-set, and rate-limited per host.
type Frontier struct {
	mu         sync.Mutex
	q          queue
	seq        int64
	inflight   int
	seen       SeenSet
	defaultRPM int

	limMu    sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Frontier backed by the given seen-set. defaultRPM applies to
// hosts without an explicit per-source budget.
func New(seen SeenSet, defaultRPM int) *Frontier {
	if defaultRPM <= 0 {
		defaultRPM = 30
	}
	return &Frontier{
		seen:       seen,
		defaultRPM: defaultRPM,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// SetHostBudget registers a per-host request budget in requests per minute,
// taken from the source's configuration.
func (f *Frontier) SetHostBudget(host string, rpm int) {
	if rpm <= 0 {
		rpm = f.defaultRPM
	}
	f.limMu.Lock()
	defer f.limMu.Unlock()
	f.limiters[host] = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
}

func (f *Frontier) limiterFor(host string) *rate.Limiter {
	f.limMu.Lock()
	defer f.limMu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(f.defaultRPM)/60.0), 1)
		f.limiters[host] = lim
	}
	return lim
}

// Enqueue normalizes the URL, checks the seen-set, and adds the entry.
// Returns false when the URL was already seen (and therefore skipped).
func (f *Frontier) Enqueue(ctx context.Context, rawURL string, priority int, meta model.QueueMeta) (bool, error) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return false, err
	}

	fresh, err := f.seen.MarkSeen(ctx, URLKey(normalized))
	if err != nil {
		return false, eris.Wrap(err, "frontier: seen check")
	}
	if !fresh {
		return false, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	heap.Push(&f.q, &item{
		entry: model.QueueEntry{
			QueueID:    model.HostOf(normalized),
			URL:        normalized,
			Priority:   priority,
			Meta:       meta,
			EnqueuedAt: time.Now().UTC(),
		},
		seq: f.seq,
	})
	return true, nil
}

// Next pops the highest-priority entry and blocks on the host's rate budget.
// Returns ErrEmpty when the queue has no entries.
func (f *Frontier) Next(ctx context.Context) (*model.QueueEntry, error) {
	f.mu.Lock()
	if f.q.Len() == 0 {
		f.mu.Unlock()
		return nil, ErrEmpty
	}
	it := heap.Pop(&f.q).(*item)
	f.mu.Unlock()

	lim := f.limiterFor(it.entry.QueueID)
	if err := lim.Wait(ctx); err != nil {
		// Put it back; the caller's context expired, not the entry.
		f.mu.Lock()
		heap.Push(&f.q, it)
		f.mu.Unlock()
		return nil, eris.Wrap(err, "frontier: rate wait")
	}

	f.mu.Lock()
	f.inflight++
	f.mu.Unlock()
	return &it.entry, nil
}

// MarkDone records that a dequeued entry was fully processed.
func (f *Frontier) MarkDone(entry *model.QueueEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight > 0 {
		f.inflight--
	}
}

// MarkFailed records a processing failure. Retryable failures re-queue the
// entry with its attempt counter bumped, until DefaultMaxAttempts; anything
// else is dropped. Returns true when the entry went back on the queue.
func (f *Frontier) MarkFailed(entry *model.QueueEntry, retryable bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inflight > 0 {
		f.inflight--
	}

	entry.Attempts++
	if !retryable || entry.Attempts >= DefaultMaxAttempts {
		zap.L().Debug("frontier: entry dropped",
			zap.String("url", entry.URL),
			zap.Int("attempts", entry.Attempts),
			zap.Bool("retryable", retryable))
		return false
	}

	f.seq++
	heap.Push(&f.q, &item{entry: *entry, seq: f.seq})
	return true
}

// Requeue adds a URL without consulting the seen-set. Used when replaying
// dead-lettered URLs that are, by definition, already marked seen.
func (f *Frontier) Requeue(rawURL string, priority int, meta model.QueueMeta) error {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	heap.Push(&f.q, &item{
		entry: model.QueueEntry{
			QueueID:    model.HostOf(normalized),
			URL:        normalized,
			Priority:   priority,
			Meta:       meta,
			EnqueuedAt: time.Now().UTC(),
		},
		seq: f.seq,
	})
	return nil
}

// InFlight returns how many dequeued entries have not been marked done or
// failed yet.
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight
}

// Len returns the number of queued entries.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.q.Len()
}

// StartSweeper runs periodic seen-set expiry until ctx is done.
func (f *Frontier) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := f.seen.Sweep(ctx)
				if err != nil {
					zap.L().Warn("frontier: seen sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					zap.L().Debug("frontier: seen sweep", zap.Int64("removed", n))
				}
			}
		}
	}()
}
