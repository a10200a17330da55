package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSource_IsDue(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		src  Source
		want bool
	}{
		{"never crawled", Source{Active: true}, true},
		{"due", Source{Active: true, NextCrawlAt: &past}, true},
		{"exactly at next", Source{Active: true, NextCrawlAt: &now}, true},
		{"not yet", Source{Active: true, NextCrawlAt: &future}, false},
		{"inactive", Source{Active: false}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.src.IsDue(now))
		})
	}
}

func TestJobStatus_CanTransition(t *testing.T) {
	assert.True(t, JobPending.CanTransition(JobRunning))
	assert.True(t, JobRunning.CanTransition(JobCompleted))
	assert.True(t, JobRunning.CanTransition(JobCancelled))
	assert.False(t, JobCompleted.CanTransition(JobRunning))
	assert.False(t, JobPending.CanTransition(JobCompleted))
}
