//nolint:testpackage // Testing internal service requires same package access
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krekz/maulocum-sub000/internal/domain"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
	"github.com/krekz/maulocum-sub000/internal/tokens"
)

const (
	testFacility  = "fac-1"
	otherFacility = "fac-2"
	doctorA       = "doc-a"
	doctorB       = "doc-b"
	doctorC       = "doc-c"
	testBaseURL   = "https://app.test"
)

type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...infralogger.Field)         {}
func (m *mockLogger) Info(_ string, _ ...infralogger.Field)          {}
func (m *mockLogger) Warn(_ string, _ ...infralogger.Field)          {}
func (m *mockLogger) Error(_ string, _ ...infralogger.Field)         {}
func (m *mockLogger) Fatal(_ string, _ ...infralogger.Field)         {}
func (m *mockLogger) With(_ ...infralogger.Field) infralogger.Logger { return m }
func (m *mockLogger) Sync() error                                    { return nil }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store *memStore
	svc   *BookingService
	clock *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newMemStore()
	store.state.facilities[testFacility] = domain.Facility{
		ID: testFacility, Name: "Klinik Sejahtera", ContactEmail: "ops@sejahtera.test", ContactPhone: "+60123",
	}
	store.state.facilities[otherFacility] = domain.Facility{ID: otherFacility, Name: "Other Clinic"}
	store.state.doctors[doctorA] = domain.Doctor{ID: doctorA, FullName: "Dr. Aisyah", Email: "aisyah@test"}
	store.state.doctors[doctorB] = domain.Doctor{ID: doctorB, FullName: "Dr. Benjamin", Email: "ben@test"}
	store.state.doctors[doctorC] = domain.Doctor{ID: doctorC, FullName: "Dr. Chandra", Email: "chandra@test"}

	issuer, err := tokens.NewIssuer("test-secret", 24*time.Hour)
	require.NoError(t, err)

	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	var seq atomic.Int64

	svc := NewBookingService(store, issuer, &mockLogger{}, nil, Options{
		PublicBaseURL: testBaseURL,
		Now:           clock.Now,
		NewID:         func() string { return fmt.Sprintf("id-%d", seq.Add(1)) },
	})
	return &fixture{store: store, svc: svc, clock: clock}
}

func (f *fixture) createJob(t *testing.T, needed int) *domain.Job {
	t.Helper()
	now := f.clock.Now()
	job, err := f.svc.CreateJob(t.Context(), testFacility, JobInput{
		Title:         "Weekend ER locum",
		DoctorsNeeded: needed,
		StartDate:     now.Add(48 * time.Hour),
		EndDate:       now.Add(72 * time.Hour),
	})
	require.NoError(t, err)
	return job
}

func (f *fixture) apply(t *testing.T, jobID, doctorID string) *domain.Application {
	t.Helper()
	app, err := f.svc.Apply(t.Context(), doctorID, jobID, "Available all weekend")
	require.NoError(t, err)
	return app
}

// approve approves the application and returns the raw token from the
// doctor's confirmation link.
func (f *fixture) approve(t *testing.T, appID string) string {
	t.Helper()
	_, err := f.svc.Approve(t.Context(), testFacility, appID)
	require.NoError(t, err)

	var raw string
	for _, n := range f.notifications(domain.EventApplicationApproved) {
		if n.ApplicationID != appID {
			continue
		}
		p, decodeErr := n.DecodePayload()
		require.NoError(t, decodeErr)
		raw = strings.TrimPrefix(p.ConfirmURL, testBaseURL+"/confirm/")
	}
	require.NotEmpty(t, raw, "approval notification carries a confirm link")
	return raw
}

func (f *fixture) book(t *testing.T, jobID, doctorID string) *domain.Application {
	t.Helper()
	app := f.apply(t, jobID, doctorID)
	raw := f.approve(t, app.ID)
	confirmed, err := f.svc.Confirm(t.Context(), raw)
	require.NoError(t, err)
	return confirmed
}

func (f *fixture) notifications(event domain.EventType) []domain.Notification {
	var out []domain.Notification
	f.store.read(func(s *memState) {
		for _, n := range s.outbox {
			if n.EventType == event {
				out = append(out, n)
			}
		}
	})
	return out
}

func (f *fixture) app(id string) (domain.Application, bool) {
	var a domain.Application
	var ok bool
	f.store.read(func(s *memState) { a, ok = s.apps[id] })
	return a, ok
}

func (f *fixture) job(id string) domain.Job {
	var j domain.Job
	f.store.read(func(s *memState) { j = s.jobs[id] })
	return j
}

func (f *fixture) rosterSize(jobID string) int {
	n := 0
	f.store.read(func(s *memState) {
		for _, e := range s.roster {
			if e.JobID == jobID {
				n++
			}
		}
	})
	return n
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, domain.KindOf(err), "error: %v", err)
}

func TestApply(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 1)

	app := f.apply(t, job.ID, doctorA)
	assert.Equal(t, domain.StatusPending, app.Status)
	assert.Len(t, f.notifications(domain.EventApplicationSubmitted), 1)

	_, err := f.svc.Apply(t.Context(), doctorA, job.ID, "")
	requireKind(t, err, domain.KindConflict)

	_, err = f.svc.Apply(t.Context(), doctorA, "missing-job", "")
	requireKind(t, err, domain.KindNotFound)

	_, err = f.svc.CloseJob(t.Context(), testFacility, job.ID)
	require.NoError(t, err)
	_, err = f.svc.Apply(t.Context(), doctorB, job.ID, "")
	requireKind(t, err, domain.KindInvalidState)
}

func TestWithdraw_DeletesPendingAndKeepsJobOpen(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 1)
	app := f.apply(t, job.ID, doctorA)

	err := f.svc.Withdraw(t.Context(), doctorB, app.ID)
	requireKind(t, err, domain.KindNotFound)

	require.NoError(t, f.svc.Withdraw(t.Context(), doctorA, app.ID))

	_, exists := f.app(app.ID)
	assert.False(t, exists)
	assert.Equal(t, domain.JobStatusOpen, f.job(job.ID).Status)

	err = f.svc.Withdraw(t.Context(), doctorA, app.ID)
	requireKind(t, err, domain.KindNotFound)
}

func TestWithdraw_OnlyFromPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 1)
	app := f.apply(t, job.ID, doctorA)
	f.approve(t, app.ID)

	err := f.svc.Withdraw(t.Context(), doctorA, app.ID)
	requireKind(t, err, domain.KindInvalidState)
}

func TestWithdraw_KeepsReopenedJobOpen(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 1)
	f.book(t, job.ID, doctorA)
	require.Equal(t, domain.JobStatusFilled, f.job(job.ID).Status)

	_, err := f.svc.ReopenJob(t.Context(), testFacility, job.ID)
	require.NoError(t, err)

	late := f.apply(t, job.ID, doctorB)
	require.NoError(t, f.svc.Withdraw(t.Context(), doctorB, late.ID))
	assert.Equal(t, domain.JobStatusOpen, f.job(job.ID).Status)

	pending := f.apply(t, job.ID, doctorC)
	result, err := f.svc.Cancel(t.Context(), doctorC, pending.ID, "")
	require.NoError(t, err)
	assert.True(t, result.Deleted)
	assert.Equal(t, domain.JobStatusOpen, f.job(job.ID).Status)
	assert.Equal(t, 1, f.rosterSize(job.ID))
}

func TestApproveConfirm_TokenIsSingleUse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 2)
	app := f.apply(t, job.ID, doctorA)
	raw := f.approve(t, app.ID)

	approved, _ := f.app(app.ID)
	require.NotNil(t, approved.ConfirmationToken)
	assert.NotEqual(t, raw, *approved.ConfirmationToken, "only the digest is stored")

	preview, err := f.svc.PreviewConfirmation(t.Context(), raw)
	require.NoError(t, err)
	assert.Equal(t, int64(24*60*60), preview.RemainingSeconds)
	assert.Equal(t, "Klinik Sejahtera", preview.FacilityName)

	confirmed, err := f.svc.Confirm(t.Context(), raw)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDoctorConfirmed, confirmed.Status)
	assert.Nil(t, confirmed.ConfirmationToken)
	assert.Equal(t, 1, f.rosterSize(job.ID))
	assert.Equal(t, domain.JobStatusOpen, f.job(job.ID).Status)
	assert.Len(t, f.notifications(domain.EventBookingConfirmed), 1)

	_, err = f.svc.Confirm(t.Context(), raw)
	requireKind(t, err, domain.KindAlreadyUsed)

	_, err = f.svc.PreviewConfirmation(t.Context(), raw)
	requireKind(t, err, domain.KindAlreadyUsed)
}

func TestConfirm_ConcurrentAttemptsHaveOneWinner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 1)
	app := f.apply(t, job.ID, doctorA)
	raw := f.approve(t, app.ID)

	const attempts = 2
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Go(func() {
			_, errs[i] = f.svc.Confirm(context.Background(), raw)
		})
	}
	wg.Wait()

	var ok, used int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case domain.KindOf(err) == domain.KindAlreadyUsed:
			used++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, used)
	assert.Equal(t, 1, f.rosterSize(job.ID))
	assert.Equal(t, domain.JobStatusFilled, f.job(job.ID).Status)
}

func TestConfirm_UnknownToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Confirm(t.Context(), "not-a-token")
	requireKind(t, err, domain.KindNotFound)

	_, err = f.svc.Confirm(t.Context(), strings.Repeat("ab", tokens.RawLength))
	requireKind(t, err, domain.KindNotFound)
}

func TestConfirm_ExpiredTokenStaysApprovedAndCanBeDeclined(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 1)
	app := f.apply(t, job.ID, doctorA)
	raw := f.approve(t, app.ID)

	f.clock.Advance(24 * time.Hour)

	_, err := f.svc.Confirm(t.Context(), raw)
	requireKind(t, err, domain.KindExpired)
	_, err = f.svc.PreviewConfirmation(t.Context(), raw)
	requireKind(t, err, domain.KindExpired)

	current, _ := f.app(app.ID)
	assert.Equal(t, domain.StatusEmployerApproved, current.Status)
	assert.Equal(t, 0, f.rosterSize(job.ID))

	declined, err := f.svc.Decline(t.Context(), raw)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDoctorRejected, declined.Status)
	assert.Len(t, f.notifications(domain.EventApplicationDeclined), 1)

	_, err = f.svc.Confirm(t.Context(), raw)
	requireKind(t, err, domain.KindAlreadyUsed)
}

func TestConfirm_Guards(t *testing.T) {
	t.Parallel()

	t.Run("roster full", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		job := f.createJob(t, 1)
		late := f.apply(t, job.ID, doctorB)
		raw := f.approve(t, late.ID)
		f.book(t, job.ID, doctorA)

		_, err := f.svc.ReopenJob(t.Context(), testFacility, job.ID)
		require.NoError(t, err)

		_, err = f.svc.Confirm(t.Context(), raw)
		requireKind(t, err, domain.KindConflict)
		assert.Equal(t, 1, f.rosterSize(job.ID))

		current, _ := f.app(late.ID)
		assert.Equal(t, domain.StatusEmployerApproved, current.Status)
	})

	t.Run("job closed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		job := f.createJob(t, 1)
		app := f.apply(t, job.ID, doctorA)
		raw := f.approve(t, app.ID)

		_, err := f.svc.CloseJob(t.Context(), testFacility, job.ID)
		require.NoError(t, err)

		_, err = f.svc.Confirm(t.Context(), raw)
		requireKind(t, err, domain.KindInvalidState)
	})
}

func TestApproveReject_Guards(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 1)
	app := f.apply(t, job.ID, doctorA)

	_, err := f.svc.Approve(t.Context(), otherFacility, app.ID)
	requireKind(t, err, domain.KindNotFound)

	rejected, err := f.svc.Reject(t.Context(), testFacility, app.ID, "Shift covered internally")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEmployerRejected, rejected.Status)

	notes := f.notifications(domain.EventApplicationRejected)
	require.Len(t, notes, 1)
	p, err := notes[0].DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, "Shift covered internally", p.Reason)
	assert.Equal(t, "aisyah@test", p.Recipient.Email)

	_, err = f.svc.Approve(t.Context(), testFacility, app.ID)
	requireKind(t, err, domain.KindInvalidState)
	_, err = f.svc.Reject(t.Context(), testFacility, app.ID, "")
	requireKind(t, err, domain.KindInvalidState)
}

func TestCancel_ConfirmedBooking(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 1)
	app := f.book(t, job.ID, doctorA)
	require.Equal(t, domain.JobStatusFilled, f.job(job.ID).Status)

	_, err := f.svc.Cancel(t.Context(), doctorA, app.ID, "sick!")
	requireKind(t, err, domain.KindInvalidInput)
	assert.Equal(t, 1, f.rosterSize(job.ID))

	_, err = f.svc.Cancel(t.Context(), doctorB, app.ID, strings.Repeat("r", 50))
	requireKind(t, err, domain.KindNotFound)

	reason := "Family emergency, I have to travel back home tonight."
	result, err := f.svc.Cancel(t.Context(), doctorA, app.ID, reason)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.NotifiedEmployer)
	assert.Equal(t, domain.StatusCancelled, result.Status)

	cancelled, _ := f.app(app.ID)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, reason, *cancelled.CancellationReason)
	assert.Equal(t, 0, f.rosterSize(job.ID))
	assert.Equal(t, domain.JobStatusOpen, f.job(job.ID).Status)

	notes := f.notifications(domain.EventBookingCancelled)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.RecipientFacility, notes[0].RecipientKind)
	p, err := notes[0].DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, "Dr. Aisyah", p.DoctorName)
	assert.Equal(t, "Weekend ER locum", p.JobTitle)
	assert.Equal(t, reason, p.Reason)

	_, err = f.svc.Cancel(t.Context(), doctorA, app.ID, reason)
	requireKind(t, err, domain.KindInvalidState)
	assert.Contains(t, domain.MessageOf(err), "already CANCELLED")
}

func TestCancel_PendingActsAsWithdraw(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 1)
	app := f.apply(t, job.ID, doctorA)

	result, err := f.svc.Cancel(t.Context(), doctorA, app.ID, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Deleted)
	assert.False(t, result.NotifiedEmployer)

	_, exists := f.app(app.ID)
	assert.False(t, exists)
	assert.Equal(t, domain.JobStatusOpen, f.job(job.ID).Status)
}

func TestCancel_ApprovedIsInvalidState(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 1)
	app := f.apply(t, job.ID, doctorA)
	f.approve(t, app.ID)

	_, err := f.svc.Cancel(t.Context(), doctorA, app.ID, "Changed my plans for the weekend")
	requireKind(t, err, domain.KindInvalidState)
}

func TestCancel_RollsBackWhenOutboxWriteFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 1)
	app := f.book(t, job.ID, doctorA)

	f.store.mu.Lock()
	f.store.enqueueErr = errors.New("disk full")
	f.store.mu.Unlock()

	_, err := f.svc.Cancel(t.Context(), doctorA, app.ID, "Family emergency, travelling home")
	requireKind(t, err, domain.KindInternal)

	current, _ := f.app(app.ID)
	assert.Equal(t, domain.StatusDoctorConfirmed, current.Status)
	assert.Equal(t, 1, f.rosterSize(job.ID))
	assert.Equal(t, domain.JobStatusFilled, f.job(job.ID).Status)
}

func TestUpdateJob_EvictsMostRecentlyAccepted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 2)

	first := f.book(t, job.ID, doctorA)
	f.clock.Advance(time.Minute)
	second := f.book(t, job.ID, doctorB)
	require.Equal(t, domain.JobStatusFilled, f.job(job.ID).Status)

	one := 1
	result, err := f.svc.UpdateJob(t.Context(), testFacility, job.ID, domain.JobPatch{DoctorsNeeded: &one})
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, result.Capacity.Evicted)
	assert.Equal(t, domain.JobStatusFilled, result.Capacity.Status)
	assert.Equal(t, 1, result.Capacity.RosterSize)

	evicted, _ := f.app(second.ID)
	assert.Equal(t, domain.StatusCancelled, evicted.Status)
	require.NotNil(t, evicted.CancellationReason)
	assert.Equal(t, domain.EvictionReason, *evicted.CancellationReason)

	kept, _ := f.app(first.ID)
	assert.Equal(t, domain.StatusDoctorConfirmed, kept.Status)
	assert.Nil(t, kept.CancelledAt)

	assert.Equal(t, 1, f.rosterSize(job.ID))
	assert.Equal(t, domain.JobStatusFilled, f.job(job.ID).Status)

	notes := f.notifications(domain.EventBookingEvicted)
	require.Len(t, notes, 1)
	assert.Equal(t, doctorB, notes[0].RecipientID)
}

func TestUpdateJob_CapacityIncreaseReopens(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 1)
	f.book(t, job.ID, doctorA)
	require.Equal(t, domain.JobStatusFilled, f.job(job.ID).Status)

	three := 3
	result, err := f.svc.UpdateJob(t.Context(), testFacility, job.ID, domain.JobPatch{DoctorsNeeded: &three})
	require.NoError(t, err)
	assert.Empty(t, result.Capacity.Evicted)
	assert.Equal(t, domain.JobStatusOpen, result.Job.Status)
}

func TestUpdateJob_ClosedIsSticky(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 2)
	f.book(t, job.ID, doctorA)
	f.clock.Advance(time.Second)
	late := f.book(t, job.ID, doctorB)

	_, err := f.svc.CloseJob(t.Context(), testFacility, job.ID)
	require.NoError(t, err)

	one := 1
	result, err := f.svc.UpdateJob(t.Context(), testFacility, job.ID, domain.JobPatch{DoctorsNeeded: &one})
	require.NoError(t, err)
	assert.Equal(t, []string{late.ID}, result.Capacity.Evicted)
	assert.Equal(t, domain.JobStatusClosed, f.job(job.ID).Status)

	five := 5
	_, err = f.svc.UpdateJob(t.Context(), testFacility, job.ID, domain.JobPatch{DoctorsNeeded: &five})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusClosed, f.job(job.ID).Status)
}

func TestUpdateJob_NonCapacityEditKeepsStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	job := f.createJob(t, 2)
	f.book(t, job.ID, doctorA)
	completed, err := f.svc.CompleteJob(t.Context(), testFacility, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusFilled, completed.Status)

	title := "Weekend ER locum (nights)"
	result, err := f.svc.UpdateJob(t.Context(), testFacility, job.ID, domain.JobPatch{Title: &title})
	require.NoError(t, err)
	assert.False(t, result.Capacity.Changed())
	assert.Equal(t, domain.JobStatusFilled, result.Job.Status)
	assert.Equal(t, domain.JobStatusFilled, f.job(job.ID).Status)

	_, err = f.svc.Apply(t.Context(), doctorB, job.ID, "")
	requireKind(t, err, domain.KindInvalidState)

	reopened := f.createJob(t, 1)
	f.book(t, reopened.ID, doctorC)
	_, err = f.svc.ReopenJob(t.Context(), testFacility, reopened.ID)
	require.NoError(t, err)

	result, err = f.svc.UpdateJob(t.Context(), testFacility, reopened.ID, domain.JobPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Capacity.RosterSize)
	assert.Equal(t, domain.JobStatusOpen, f.job(reopened.ID).Status)
}

func TestUpdateJob_NotOwner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 1)

	title := "Stolen"
	_, err := f.svc.UpdateJob(t.Context(), otherFacility, job.ID, domain.JobPatch{Title: &title})
	requireKind(t, err, domain.KindNotFound)

	zero := 0
	_, err = f.svc.UpdateJob(t.Context(), testFacility, job.ID, domain.JobPatch{DoctorsNeeded: &zero})
	requireKind(t, err, domain.KindInvalidInput)
}

func TestCapacityCoordinator_Idempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 2)
	f.book(t, job.ID, doctorA)
	f.book(t, job.ID, doctorB)

	for range 2 {
		err := f.store.WithinTx(t.Context(), func(tx Tx) error {
			locked, err := tx.LockJob(t.Context(), job.ID)
			require.NoError(t, err)
			change, err := f.svc.Capacity().Reconcile(t.Context(), tx, locked)
			require.NoError(t, err)
			assert.False(t, change.Changed())
			assert.Equal(t, domain.JobStatusFilled, change.Status)
			return nil
		})
		require.NoError(t, err)
	}
	assert.Empty(t, f.notifications(domain.EventBookingEvicted))
}

func TestJobLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 2)

	_, err := f.svc.ReopenJob(t.Context(), testFacility, job.ID)
	requireKind(t, err, domain.KindInvalidState)

	_, err = f.svc.CompleteJob(t.Context(), testFacility, job.ID)
	requireKind(t, err, domain.KindNothingToComplete)

	closed, err := f.svc.CloseJob(t.Context(), testFacility, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusClosed, closed.Status)

	_, err = f.svc.CloseJob(t.Context(), testFacility, job.ID)
	requireKind(t, err, domain.KindAlreadyClosed)

	reopened, err := f.svc.ReopenJob(t.Context(), testFacility, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusOpen, reopened.Status)

	app := f.book(t, job.ID, doctorA)
	pending := f.apply(t, job.ID, doctorB)

	completed, err := f.svc.CompleteJob(t.Context(), testFacility, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFilled, completed.Status)

	done, _ := f.app(app.ID)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	untouched, _ := f.app(pending.ID)
	assert.Equal(t, domain.StatusPending, untouched.Status)

	_, err = f.svc.CloseJob(t.Context(), otherFacility, job.ID)
	requireKind(t, err, domain.KindNotFound)
}

func TestListMine_LazilyCompletesEndedBookings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.ListMine(t.Context(), doctorA)
	requireKind(t, err, domain.KindNotFound)

	job := f.createJob(t, 1)
	app := f.book(t, job.ID, doctorA)

	views, err := f.svc.ListMine(t.Context(), doctorA)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusDoctorConfirmed, views[0].Status)

	f.clock.Advance(72*time.Hour + time.Second)

	views, err = f.svc.ListMine(t.Context(), doctorA)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.StatusCompleted, views[0].Status)
	assert.Equal(t, "Weekend ER locum", views[0].JobTitle)
	assert.Equal(t, "Klinik Sejahtera", views[0].FacilityName)

	completed, _ := f.app(app.ID)
	assert.NotNil(t, completed.CompletedAt)
	assert.Equal(t, 1, f.rosterSize(job.ID), "sweep keeps the roster seat")
}

func TestSweepAll(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 2)
	f.book(t, job.ID, doctorA)
	f.book(t, job.ID, doctorB)

	n, err := f.svc.SweepAll(t.Context(), "manual")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	f.clock.Advance(100 * time.Hour)

	n, err = f.svc.SweepAll(t.Context(), "manual")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.SweepAll(t.Context(), "manual")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGetJobAndApplications(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	job := f.createJob(t, 2)
	f.book(t, job.ID, doctorA)
	f.apply(t, job.ID, doctorB)

	detail, err := f.svc.GetJob(t.Context(), testFacility, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.RosterSize)

	apps, err := f.svc.ListJobApplications(t.Context(), testFacility, job.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 2)

	_, err = f.svc.GetJob(t.Context(), otherFacility, job.ID)
	requireKind(t, err, domain.KindNotFound)
	_, err = f.svc.ListJobApplications(t.Context(), otherFacility, job.ID)
	requireKind(t, err, domain.KindNotFound)
}

func TestCreateJob_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	now := f.clock.Now()

	_, err := f.svc.CreateJob(t.Context(), testFacility, JobInput{
		Title: "", StartDate: now, EndDate: now.Add(time.Hour),
	})
	requireKind(t, err, domain.KindInvalidInput)

	_, err = f.svc.CreateJob(t.Context(), "unknown", JobInput{
		Title: "ER", StartDate: now, EndDate: now.Add(time.Hour),
	})
	requireKind(t, err, domain.KindNotFound)

	job, err := f.svc.CreateJob(t.Context(), testFacility, JobInput{
		Title: "ER", StartDate: now, EndDate: now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDoctorsNeeded, job.DoctorsNeeded)
}
