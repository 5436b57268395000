//nolint:testpackage // Testing internal service requires same package access
package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/krekz/maulocum-sub000/internal/domain"
)

// memState is the whole database. WithinTx snapshots it and restores the
// snapshot when the unit of work fails.
type memState struct {
	jobs         map[string]domain.Job
	apps         map[string]domain.Application
	roster       []domain.RosterEntry
	nextRosterID int64
	consumed     map[string]domain.ConsumedToken
	doctors      map[string]domain.Doctor
	facilities   map[string]domain.Facility
	outbox       []domain.Notification
}

func newMemState() *memState {
	return &memState{
		jobs:       map[string]domain.Job{},
		apps:       map[string]domain.Application{},
		consumed:   map[string]domain.ConsumedToken{},
		doctors:    map[string]domain.Doctor{},
		facilities: map[string]domain.Facility{},
	}
}

func (s *memState) clone() *memState {
	return &memState{
		jobs:         maps.Clone(s.jobs),
		apps:         maps.Clone(s.apps),
		roster:       slices.Clone(s.roster),
		nextRosterID: s.nextRosterID,
		consumed:     maps.Clone(s.consumed),
		doctors:      maps.Clone(s.doctors),
		facilities:   maps.Clone(s.facilities),
		outbox:       slices.Clone(s.outbox),
	}
}

// memStore serializes transactions with one mutex, which stands in for the
// job and application row locks.
type memStore struct {
	mu         sync.Mutex
	state      *memState
	enqueueErr error
}

func newMemStore() *memStore {
	return &memStore{state: newMemState()}
}

func (m *memStore) WithinTx(_ context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&memTx{st: m.state, enqueueErr: m.enqueueErr}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// read gives tests a consistent view of the committed state.
func (m *memStore) read(fn func(*memState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.state)
}

type memTx struct {
	st         *memState
	enqueueErr error
}

func (t *memTx) GetJob(_ context.Context, id string) (*domain.Job, error) {
	j, ok := t.st.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

func (t *memTx) LockJob(ctx context.Context, id string) (*domain.Job, error) {
	return t.GetJob(ctx, id)
}

func (t *memTx) InsertJob(_ context.Context, j *domain.Job) error {
	if _, ok := t.st.jobs[j.ID]; ok {
		return domain.ErrDuplicate
	}
	t.st.jobs[j.ID] = *j
	return nil
}

func (t *memTx) UpdateJob(_ context.Context, j *domain.Job) error {
	if _, ok := t.st.jobs[j.ID]; !ok {
		return domain.ErrNotFound
	}
	t.st.jobs[j.ID] = *j
	return nil
}

func (t *memTx) InsertApplication(_ context.Context, a *domain.Application) error {
	for _, existing := range t.st.apps {
		if existing.JobID == a.JobID && existing.DoctorID == a.DoctorID {
			return domain.ErrDuplicate
		}
	}
	t.st.apps[a.ID] = *a
	return nil
}

func (t *memTx) GetApplication(_ context.Context, id string) (*domain.Application, error) {
	a, ok := t.st.apps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (t *memTx) LockApplication(ctx context.Context, id string) (*domain.Application, error) {
	return t.GetApplication(ctx, id)
}

func (t *memTx) FindApplicationByToken(_ context.Context, digest string) (*domain.Application, error) {
	for _, a := range t.st.apps {
		if a.ConfirmationToken != nil && *a.ConfirmationToken == digest {
			return &a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *memTx) UpdateApplication(_ context.Context, a *domain.Application) error {
	if _, ok := t.st.apps[a.ID]; !ok {
		return domain.ErrNotFound
	}
	if a.Status != domain.StatusEmployerApproved && a.ConfirmationToken != nil {
		return errors.New("check constraint: token outside EMPLOYER_APPROVED")
	}
	t.st.apps[a.ID] = *a
	return nil
}

func (t *memTx) DeleteApplication(_ context.Context, id string) error {
	if _, ok := t.st.apps[id]; !ok {
		return domain.ErrNotFound
	}
	delete(t.st.apps, id)
	return nil
}

func (t *memTx) ListApplicationsByDoctor(_ context.Context, doctorID string) ([]domain.ApplicationView, error) {
	views := []domain.ApplicationView{}
	for _, a := range t.st.apps {
		if a.DoctorID != doctorID {
			continue
		}
		j := t.st.jobs[a.JobID]
		views = append(views, domain.ApplicationView{
			Application:  a,
			JobTitle:     j.Title,
			JobStatus:    j.Status,
			JobStartDate: j.StartDate,
			JobEndDate:   j.EndDate,
			FacilityName: t.st.facilities[j.FacilityID].Name,
		})
	}
	sort.Slice(views, func(i, k int) bool { return views[i].AppliedAt.After(views[k].AppliedAt) })
	return views, nil
}

func (t *memTx) ListApplicationsByJob(_ context.Context, jobID string) ([]domain.Application, error) {
	apps := []domain.Application{}
	for _, a := range t.st.apps {
		if a.JobID == jobID {
			apps = append(apps, a)
		}
	}
	sort.Slice(apps, func(i, k int) bool { return apps[i].AppliedAt.Before(apps[k].AppliedAt) })
	return apps, nil
}

func (t *memTx) LockConfirmedForJob(_ context.Context, jobID string) ([]domain.Application, error) {
	apps := []domain.Application{}
	for _, a := range t.st.apps {
		if a.JobID == jobID && a.Status == domain.StatusDoctorConfirmed {
			apps = append(apps, a)
		}
	}
	return apps, nil
}

func (t *memTx) CompleteEnded(_ context.Context, doctorID string, now time.Time) ([]string, error) {
	ids := []string{}
	for id, a := range t.st.apps {
		if a.Status != domain.StatusDoctorConfirmed || (doctorID != "" && a.DoctorID != doctorID) {
			continue
		}
		if !t.st.jobs[a.JobID].EndDate.Before(now) {
			continue
		}
		a.Status = domain.StatusCompleted
		a.CompletedAt = &now
		a.UpdatedAt = now
		t.st.apps[id] = a
		ids = append(ids, id)
	}
	return ids, nil
}

func (t *memTx) CountRoster(_ context.Context, jobID string) (int, error) {
	n := 0
	for _, e := range t.st.roster {
		if e.JobID == jobID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertRosterEntry(_ context.Context, e *domain.RosterEntry) error {
	for _, existing := range t.st.roster {
		if existing.ApplicationID == e.ApplicationID {
			return domain.ErrDuplicate
		}
	}
	t.st.nextRosterID++
	e.ID = t.st.nextRosterID
	t.st.roster = append(t.st.roster, *e)
	return nil
}

func (t *memTx) DeleteRosterEntry(_ context.Context, applicationID string) error {
	for i, e := range t.st.roster {
		if e.ApplicationID == applicationID {
			t.st.roster = slices.Delete(t.st.roster, i, i+1)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (t *memTx) ListRosterNewestFirst(_ context.Context, jobID string, limit int) ([]domain.RosterEntry, error) {
	entries := []domain.RosterEntry{}
	for _, e := range t.st.roster {
		if e.JobID == jobID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, k int) bool {
		if !entries[i].AcceptedAt.Equal(entries[k].AcceptedAt) {
			return entries[i].AcceptedAt.After(entries[k].AcceptedAt)
		}
		return entries[i].ID > entries[k].ID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (t *memTx) RecordConsumedToken(_ context.Context, c *domain.ConsumedToken) error {
	if _, ok := t.st.consumed[c.Digest]; ok {
		return domain.ErrDuplicate
	}
	t.st.consumed[c.Digest] = *c
	return nil
}

func (t *memTx) GetConsumedToken(_ context.Context, digest string) (*domain.ConsumedToken, error) {
	c, ok := t.st.consumed[digest]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (t *memTx) GetDoctor(_ context.Context, id string) (*domain.Doctor, error) {
	d, ok := t.st.doctors[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &d, nil
}

func (t *memTx) GetFacility(_ context.Context, id string) (*domain.Facility, error) {
	f, ok := t.st.facilities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &f, nil
}

func (t *memTx) EnqueueNotification(_ context.Context, n *domain.Notification) error {
	if t.enqueueErr != nil {
		return t.enqueueErr
	}
	t.st.outbox = append(t.st.outbox, *n)
	return nil
}
