package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarium/catalog-cli/internal/model"
)

type memSchedStore struct {
	due      []model.Source
	jobs     map[string]*model.CrawlJob
	schedule map[string][2]time.Time
}

func newMemSchedStore(due ...model.Source) *memSchedStore {
	return &memSchedStore{
		due:      due,
		jobs:     map[string]*model.CrawlJob{},
		schedule: map[string][2]time.Time{},
	}
}

func (m *memSchedStore) ListDueSources(_ context.Context, _ time.Time) ([]model.Source, error) {
	return m.due, nil
}

func (m *memSchedStore) UpdateSourceCrawlTimes(_ context.Context, id string, last, next time.Time) error {
	m.schedule[id] = [2]time.Time{last, next}
	return nil
}

func (m *memSchedStore) CreateJob(_ context.Context, job *model.CrawlJob) error {
	job.ID = fmt.Sprintf("job-%d", len(m.jobs)+1)
	job.Status = model.JobPending
	m.jobs[job.ID] = job
	return nil
}

func (m *memSchedStore) UpdateJobStatus(_ context.Context, id string, status model.JobStatus) error {
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if !job.Status.CanTransition(status) {
		return fmt.Errorf("invalid transition %s -> %s", job.Status, status)
	}
	job.Status = status
	return nil
}

func (m *memSchedStore) FinishJob(_ context.Context, job *model.CrawlJob) error {
	m.jobs[job.ID] = job
	return nil
}

func TestRunOnce_RunsDueSourcesUnderJobs(t *testing.T) {
	st := newMemSchedStore(
		model.Source{ID: "s1", Slug: "comp-a", Category: model.SourceCompetition, CrawlFreqHrs: 24},
		model.Source{ID: "s2", Slug: "hub-b", Category: model.SourceRetailer, CrawlFreqHrs: 168},
	)
	s := New(st, time.Minute)

	var crawled []string
	s.Register(model.SourceCompetition, func(_ context.Context, src *model.Source) (*Stats, error) {
		crawled = append(crawled, src.Slug)
		return &Stats{PagesCrawled: 3, ProductsFound: 40}, nil
	})
	s.Register(model.SourceRetailer, func(_ context.Context, src *model.Source) (*Stats, error) {
		crawled = append(crawled, src.Slug)
		return &Stats{PagesCrawled: 9}, nil
	})

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	ran, err := s.RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, ran)
	assert.Equal(t, []string{"comp-a", "hub-b"}, crawled)

	require.Len(t, st.jobs, 2)
	for _, job := range st.jobs {
		assert.Equal(t, model.JobCompleted, job.Status)
	}

	sched, ok := st.schedule["s1"]
	require.True(t, ok)
	assert.Equal(t, now, sched[0])
	assert.Equal(t, now.Add(24*time.Hour), sched[1])
}

func TestRunOnce_FailureStillReschedules(t *testing.T) {
	st := newMemSchedStore(
		model.Source{ID: "s1", Slug: "broken", Category: model.SourceCompetition, CrawlFreqHrs: 24},
	)
	s := New(st, time.Minute)
	s.Register(model.SourceCompetition, func(_ context.Context, _ *model.Source) (*Stats, error) {
		return &Stats{PagesCrawled: 1, ErrorCount: 5}, fmt.Errorf("site down")
	})

	now := time.Now().UTC()
	ran, err := s.RunOnce(context.Background(), now)
	require.NoError(t, err, "a failing source does not fail the sweep")
	assert.Equal(t, 1, ran)

	require.Len(t, st.jobs, 1)
	for _, job := range st.jobs {
		assert.Equal(t, model.JobFailed, job.Status)
		assert.Equal(t, "site down", job.Summary)
		assert.Equal(t, 5, job.ErrorCount)
	}
	_, rescheduled := st.schedule["s1"]
	assert.True(t, rescheduled, "failed sources still move to their next slot")
}

func TestRunOnce_SkipsUnregisteredCategories(t *testing.T) {
	st := newMemSchedStore(
		model.Source{ID: "s1", Slug: "news-x", Category: model.SourceNews},
	)
	s := New(st, time.Minute)

	ran, err := s.RunOnce(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 0, ran)
	assert.Empty(t, st.jobs)
}

func TestRunOnce_DefaultFrequency(t *testing.T) {
	st := newMemSchedStore(
		model.Source{ID: "s1", Slug: "no-freq", Category: model.SourceProducer},
	)
	s := New(st, time.Minute)
	s.Register(model.SourceProducer, func(_ context.Context, _ *model.Source) (*Stats, error) {
		return &Stats{}, nil
	})

	now := time.Now().UTC()
	_, err := s.RunOnce(context.Background(), now)
	require.NoError(t, err)
	sched := st.schedule["s1"]
	assert.Equal(t, now.Add(7*24*time.Hour), sched[1], "unset frequency falls back to weekly")
}
