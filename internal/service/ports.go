package service

import (
	"context"
	"time"

	"github.com/krekz/maulocum-sub000/internal/domain"
	"github.com/krekz/maulocum-sub000/internal/tokens"
)

// Store runs a unit of work atomically. Every Tx method sees and writes the
// same transaction; a non-nil return from fn rolls everything back.
type Store interface {
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the data access surface used inside a transaction. Storage sentinels
// (domain.ErrNotFound, domain.ErrDuplicate) are returned unwrapped or wrapped
// with %w.
type Tx interface {
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	LockJob(ctx context.Context, id string) (*domain.Job, error)
	InsertJob(ctx context.Context, j *domain.Job) error
	UpdateJob(ctx context.Context, j *domain.Job) error

	InsertApplication(ctx context.Context, a *domain.Application) error
	GetApplication(ctx context.Context, id string) (*domain.Application, error)
	LockApplication(ctx context.Context, id string) (*domain.Application, error)
	FindApplicationByToken(ctx context.Context, digest string) (*domain.Application, error)
	UpdateApplication(ctx context.Context, a *domain.Application) error
	DeleteApplication(ctx context.Context, id string) error
	ListApplicationsByDoctor(ctx context.Context, doctorID string) ([]domain.ApplicationView, error)
	ListApplicationsByJob(ctx context.Context, jobID string) ([]domain.Application, error)
	LockConfirmedForJob(ctx context.Context, jobID string) ([]domain.Application, error)
	CompleteEnded(ctx context.Context, doctorID string, now time.Time) ([]string, error)

	CountRoster(ctx context.Context, jobID string) (int, error)
	InsertRosterEntry(ctx context.Context, e *domain.RosterEntry) error
	DeleteRosterEntry(ctx context.Context, applicationID string) error
	ListRosterNewestFirst(ctx context.Context, jobID string, limit int) ([]domain.RosterEntry, error)

	RecordConsumedToken(ctx context.Context, c *domain.ConsumedToken) error
	GetConsumedToken(ctx context.Context, digest string) (*domain.ConsumedToken, error)

	GetDoctor(ctx context.Context, id string) (*domain.Doctor, error)
	GetFacility(ctx context.Context, id string) (*domain.Facility, error)

	EnqueueNotification(ctx context.Context, n *domain.Notification) error
}

// TokenIssuer mints confirmation tokens.
type TokenIssuer interface {
	Issue(now time.Time) (tokens.Issued, error)
	Digest(raw string) string
	TTL() time.Duration
}

// Recorder receives business counters. metrics.Metrics implements it.
type Recorder interface {
	RecordTransition(operation, outcome string)
	RecordEvictions(n int)
	RecordSweepCompletions(trigger string, n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(string, string)    {}
func (nopRecorder) RecordEvictions(int)                {}
func (nopRecorder) RecordSweepCompletions(string, int) {}
