// Package service implements the job application lifecycle: the application
// state machine, confirmation tokens, capacity reconciliation and the
// completion sweep. Every operation runs in one Store transaction.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/krekz/maulocum-sub000/internal/domain"
	"github.com/krekz/maulocum-sub000/internal/tokens"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
)

// Options tune the booking service.
type Options struct {
	// PublicBaseURL prefixes confirmation links sent to doctors.
	PublicBaseURL string
	// CancelReasonMin and CancelReasonMax bound a doctor's cancellation reason.
	CancelReasonMin int
	CancelReasonMax int
	// NotificationMaxRetries caps outbox delivery attempts. Zero keeps the default.
	NotificationMaxRetries int
	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

func (o *Options) setDefaults() {
	if o.CancelReasonMin <= 0 {
		o.CancelReasonMin = domain.MinCancellationReasonLength
	}
	if o.CancelReasonMax <= 0 {
		o.CancelReasonMax = domain.MaxCancellationReasonLength
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
}

// BookingService owns every transition of jobs and their applications.
type BookingService struct {
	store    Store
	tokens   TokenIssuer
	logger   infralogger.Logger
	metrics  Recorder
	capacity *CapacityCoordinator
	opts     Options
}

// NewBookingService creates a BookingService. metrics may be nil.
func NewBookingService(
	store Store,
	issuer TokenIssuer,
	log infralogger.Logger,
	metrics Recorder,
	opts Options,
) *BookingService {
	opts.setDefaults()
	if metrics == nil {
		metrics = nopRecorder{}
	}
	s := &BookingService{
		store:   store,
		tokens:  issuer,
		logger:  log,
		metrics: metrics,
		opts:    opts,
	}
	s.capacity = &CapacityCoordinator{
		logger:  log,
		metrics: metrics,
		now:     opts.Now,
		notifyEvicted: func(ctx context.Context, tx Tx, app *domain.Application, job *domain.Job) error {
			_, err := s.notifyDoctor(ctx, tx, domain.EventBookingEvicted, app, job, func(p *domain.NotificationPayload) {
				p.Reason = domain.EvictionReason
			})
			return err
		},
	}
	return s
}

// Capacity exposes the coordinator for callers that already hold a transaction.
func (s *BookingService) Capacity() *CapacityCoordinator { return s.capacity }

// run executes fn in a transaction and normalises its error: business errors
// pass through, anything else is logged and becomes Internal.
func (s *BookingService) run(ctx context.Context, op string, fn func(Tx) error, fields ...infralogger.Field) error {
	err := s.store.WithinTx(ctx, fn)
	if err == nil {
		s.metrics.RecordTransition(op, "ok")
		return nil
	}

	var de *domain.Error
	if errors.As(err, &de) && de.Kind != domain.KindInternal {
		s.metrics.RecordTransition(op, string(de.Kind))
		return de
	}

	s.metrics.RecordTransition(op, string(domain.KindInternal))
	s.log(ctx).Error("Booking operation failed",
		append(fields,
			infralogger.String("operation", op),
			infralogger.Error(err),
		)...)
	return domain.Internal("failed to "+op, err)
}

func (s *BookingService) log(ctx context.Context) infralogger.Logger {
	return infralogger.FromContext(ctx, s.logger)
}

// notFound converts a storage miss into a NotFound carrying msg.
func notFound(err error, msg string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound(msg)
	}
	return err
}

// enqueue writes a notification to the outbox inside tx. A missing recipient
// profile or an unencodable payload is logged and skipped so delivery problems
// never undo the transition; storage errors are returned.
func (s *BookingService) enqueue(
	ctx context.Context,
	tx Tx,
	event domain.EventType,
	kind domain.RecipientKind,
	recipientID string,
	payload domain.NotificationPayload,
) (bool, error) {
	n, err := domain.NewNotification(s.opts.NewID(), event, kind, recipientID, payload, s.opts.Now())
	if err != nil {
		s.log(ctx).Warn("Skipping notification",
			infralogger.String("event", string(event)),
			infralogger.String("application_id", payload.ApplicationID),
			infralogger.Error(err),
		)
		return false, nil
	}
	if s.opts.NotificationMaxRetries > 0 {
		n.MaxRetries = s.opts.NotificationMaxRetries
	}
	if err = tx.EnqueueNotification(ctx, n); err != nil {
		return false, err
	}
	return true, nil
}

// loadParties fetches the doctor and facility for a notification. Either may
// be nil when the profile no longer exists.
func loadParties(ctx context.Context, tx Tx, doctorID, facilityID string) (*domain.Doctor, *domain.Facility, error) {
	doctor, err := tx.GetDoctor(ctx, doctorID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}
	facility, err := tx.GetFacility(ctx, facilityID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}
	return doctor, facility, nil
}

func basePayload(app *domain.Application, job *domain.Job, doctor *domain.Doctor, facility *domain.Facility) domain.NotificationPayload {
	p := domain.NotificationPayload{
		ApplicationID: app.ID,
		JobID:         job.ID,
		JobTitle:      job.Title,
		StartDate:     job.StartDate,
		EndDate:       job.EndDate,
	}
	if doctor != nil {
		p.DoctorName = doctor.FullName
	}
	if facility != nil {
		p.FacilityName = facility.Name
	}
	return p
}

func (s *BookingService) notifyFacility(
	ctx context.Context, tx Tx, event domain.EventType,
	app *domain.Application, job *domain.Job, reason string,
) (bool, error) {
	doctor, facility, err := loadParties(ctx, tx, app.DoctorID, job.FacilityID)
	if err != nil {
		return false, err
	}
	if facility == nil {
		s.log(ctx).Warn("Facility profile missing, notification skipped",
			infralogger.String("event", string(event)),
			infralogger.String("job_id", job.ID),
		)
		return false, nil
	}
	p := basePayload(app, job, doctor, facility)
	p.Recipient = facility.Contact()
	p.Reason = reason
	return s.enqueue(ctx, tx, event, domain.RecipientFacility, facility.ID, p)
}

func (s *BookingService) notifyDoctor(
	ctx context.Context, tx Tx, event domain.EventType,
	app *domain.Application, job *domain.Job, customize func(*domain.NotificationPayload),
) (bool, error) {
	doctor, facility, err := loadParties(ctx, tx, app.DoctorID, job.FacilityID)
	if err != nil {
		return false, err
	}
	if doctor == nil {
		s.log(ctx).Warn("Doctor profile missing, notification skipped",
			infralogger.String("event", string(event)),
			infralogger.String("application_id", app.ID),
		)
		return false, nil
	}
	p := basePayload(app, job, doctor, facility)
	p.Recipient = doctor.Contact()
	if customize != nil {
		customize(&p)
	}
	return s.enqueue(ctx, tx, event, domain.RecipientDoctor, doctor.ID, p)
}

// ConfirmURL builds the link embedded in approval notifications.
func (s *BookingService) ConfirmURL(raw string) string {
	return tokens.ConfirmURL(s.opts.PublicBaseURL, raw)
}
