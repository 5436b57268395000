package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krekz/maulocum-sub000/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestJob(t *testing.T, needed int) *domain.Job {
	t.Helper()
	j, err := domain.NewJob("job-1", "fac-1", "Night locum", needed,
		testNow.Add(24*time.Hour), testNow.Add(48*time.Hour), testNow)
	require.NoError(t, err)
	return j
}

func TestNewJob(t *testing.T) {
	t.Parallel()

	start := testNow.Add(time.Hour)
	end := start.Add(8 * time.Hour)

	tests := []struct {
		name    string
		title   string
		needed  int
		start   time.Time
		end     time.Time
		wantErr bool
		want    int
	}{
		{name: "defaults doctors needed", title: "ER cover", needed: 0, start: start, end: end, want: 1},
		{name: "explicit capacity", title: "ER cover", needed: 3, start: start, end: end, want: 3},
		{name: "blank title", title: "   ", needed: 1, start: start, end: end, wantErr: true},
		{name: "negative capacity", title: "ER cover", needed: -1, start: start, end: end, wantErr: true},
		{name: "end before start", title: "ER cover", needed: 1, start: end, end: start, wantErr: true},
		{name: "missing dates", title: "ER cover", needed: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			j, err := domain.NewJob("j", "f", tt.title, tt.needed, tt.start, tt.end, testNow)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, j.DoctorsNeeded)
			assert.Equal(t, domain.JobStatusOpen, j.Status)
		})
	}
}

func TestJob_StatusForRoster(t *testing.T) {
	t.Parallel()

	j := newTestJob(t, 2)
	assert.Equal(t, domain.JobStatusOpen, j.StatusForRoster(0))
	assert.Equal(t, domain.JobStatusOpen, j.StatusForRoster(1))
	assert.Equal(t, domain.JobStatusFilled, j.StatusForRoster(2))
	assert.Equal(t, domain.JobStatusFilled, j.StatusForRoster(5))

	j.Status = domain.JobStatusClosed
	assert.Equal(t, domain.JobStatusClosed, j.StatusForRoster(0))
	assert.Equal(t, domain.JobStatusClosed, j.StatusForRoster(2))
}

func TestJob_CloseReopen(t *testing.T) {
	t.Parallel()

	j := newTestJob(t, 1)

	err := j.Reopen(testNow)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidState, domain.KindOf(err))

	require.NoError(t, j.Close(testNow))
	assert.Equal(t, domain.JobStatusClosed, j.Status)

	err = j.Close(testNow)
	require.Error(t, err)
	assert.Equal(t, domain.KindAlreadyClosed, domain.KindOf(err))

	require.NoError(t, j.Reopen(testNow))
	assert.Equal(t, domain.JobStatusOpen, j.Status)

	j.Status = domain.JobStatusFilled
	require.NoError(t, j.Reopen(testNow))
	assert.Equal(t, domain.JobStatusOpen, j.Status)
}

func TestJobPatch_Apply(t *testing.T) {
	t.Parallel()

	j := newTestJob(t, 3)
	assert.True(t, domain.JobPatch{}.IsEmpty())

	two := 2
	require.NoError(t, domain.JobPatch{DoctorsNeeded: &two}.Apply(j, testNow))
	assert.Equal(t, 2, j.DoctorsNeeded)

	zero := 0
	err := domain.JobPatch{DoctorsNeeded: &zero}.Apply(j, testNow)
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))
}
