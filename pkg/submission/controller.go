package submission

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/telekom/leadform/pkg/audit"
	"github.com/telekom/leadform/pkg/lead"
	"github.com/telekom/leadform/pkg/metrics"
)

const tracerName = "github.com/telekom/leadform/pkg/submission"

// Store persists one lead per call.
type Store interface {
	Insert(ctx context.Context, l lead.Lead) (lead.Lead, error)
}

// Notifier sends the confirmation for a persisted lead.
type Notifier interface {
	Notify(ctx context.Context, l lead.Lead) error
}

// Recorder receives confirmed leads; *session.State implements it.
type Recorder interface {
	RecordSuccess(l lead.Lead)
}

// Auditor receives audit events; *audit.Service implements it.
type Auditor interface {
	Emit(ctx context.Context, event *audit.Event)
}

// Observer is called for every state transition, in order.
type Observer func(from, to State)

// Result describes a finished Submit call.
type Result struct {
	Outcome Outcome
	// Lead is the persisted record, set when the store confirmed the insert.
	Lead lead.Lead
	// ConfirmationSent reports whether the notifier accepted the confirmation.
	ConfirmationSent bool
	// NotificationErr holds the *lead.NotificationError of a failed confirmation. The
	// lead stays persisted and the submission still counts as succeeded.
	NotificationErr error
}

type Controller struct {
	state     atomic.Int32
	store     Store
	notifier  Notifier
	recorder  Recorder
	auditor   Auditor
	observer  Observer
	sessionID string
	log       *zap.SugaredLogger
}

type Option func(*Controller)

// WithSessionID stamps every lead with the browser session correlator.
func WithSessionID(id string) Option {
	return func(c *Controller) { c.sessionID = id }
}

func WithAuditor(a Auditor) Option {
	return func(c *Controller) { c.auditor = a }
}

func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// New returns an Idle controller. A nil notifier skips the confirmation step.
func New(store Store, notifier Notifier, recorder Recorder, log *zap.SugaredLogger, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		notifier: notifier,
		recorder: recorder,
		log:      log.Named("submission"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Busy reports whether a submission is outstanding.
func (c *Controller) Busy() bool {
	return c.State() != Idle
}

func (c *Controller) transition(from, to State) bool {
	if !c.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	if c.observer != nil {
		c.observer(from, to)
	}
	return true
}

// Submit runs validate → insert → notify for one form submit.
//
// A submit arriving while another is outstanding returns OutcomeDropped with a nil
// error. Validation and persistence failures are returned as *lead.ValidationError
// and *lead.PersistenceError. A failed confirmation does not fail the submission; it
// is reported through Result.NotificationErr.
//
// Once started, a submission runs to completion even if ctx is cancelled.
func (c *Controller) Submit(ctx context.Context, in lead.Input) (Result, error) {
	if !c.transition(Idle, Submitting) {
		metrics.Submissions.WithLabelValues(string(OutcomeDropped)).Inc()
		c.log.Debugw("Submission dropped, another one is in flight", "sessionID", c.sessionID)
		c.emit(ctx, audit.NewEvent(audit.EventSubmissionDropped, c.sessionID, ""))
		return Result{Outcome: OutcomeDropped}, nil
	}

	ctx, span := otel.Tracer(tracerName).Start(context.WithoutCancel(ctx), "submission.Submit")
	defer span.End()
	start := time.Now()
	metrics.SubmissionsInFlight.Inc()
	final := Failed
	defer func() {
		c.transition(Submitting, final)
		c.transition(final, Idle)
		metrics.SubmissionsInFlight.Dec()
		metrics.SubmissionDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := c.run(ctx, in)
	metrics.Submissions.WithLabelValues(string(res.Outcome)).Inc()
	span.SetAttributes(
		attribute.String("leadform.outcome", string(res.Outcome)),
		attribute.Bool("leadform.confirmation_sent", res.ConfirmationSent),
	)
	if err != nil {
		span.SetStatus(codes.Error, string(res.Outcome))
	}
	if res.Outcome == OutcomeSucceeded {
		final = Succeeded
	}
	return res, err
}

func (c *Controller) run(ctx context.Context, in lead.Input) (Result, error) {
	in.SessionID = c.sessionID
	l, err := lead.Normalize(in)
	if err != nil {
		c.log.Debugw("Rejected invalid lead", "sessionID", c.sessionID, "error", err)
		c.emit(ctx, audit.NewEvent(audit.EventLeadInvalid, c.sessionID, "").WithError(err))
		return Result{Outcome: OutcomeValidationFailed}, err
	}

	saved, err := c.store.Insert(ctx, l)
	if err != nil {
		pErr := &lead.PersistenceError{Err: err}
		if pErr.Duplicate() {
			c.log.Infow("Lead already captured", "sessionID", c.sessionID, "email", lead.MaskEmail(l.Email))
			c.emit(ctx, audit.NewEvent(audit.EventLeadDuplicate, c.sessionID, l.Email))
			return Result{Outcome: OutcomeDuplicate}, pErr
		}
		c.log.Errorw("Failed to persist lead", "sessionID", c.sessionID, "error", err)
		c.emit(ctx, audit.NewEvent(audit.EventLeadRejected, c.sessionID, l.Email).WithError(err))
		return Result{Outcome: OutcomePersistenceFailed}, pErr
	}

	c.log.Infow("Lead captured", "sessionID", c.sessionID, "leadID", saved.ID, "industry", saved.Industry)
	c.emit(ctx, audit.NewEvent(audit.EventLeadCaptured, c.sessionID, "").ForLead(saved))
	res := Result{Outcome: OutcomeSucceeded, Lead: saved}

	if c.notifier != nil {
		if err := c.notifier.Notify(ctx, saved); err != nil {
			var nErr *lead.NotificationError
			if !errors.As(err, &nErr) {
				err = &lead.NotificationError{Err: err}
			}
			res.NotificationErr = err
			c.log.Warnw("Lead saved but confirmation failed", "sessionID", c.sessionID, "leadID", saved.ID, "error", err)
			c.emit(ctx, audit.NewEvent(audit.EventConfirmationFailed, c.sessionID, "").ForLead(saved).WithError(err))
		} else {
			res.ConfirmationSent = true
			c.emit(ctx, audit.NewEvent(audit.EventConfirmationSent, c.sessionID, "").ForLead(saved))
		}
	}

	if c.recorder != nil {
		c.recorder.RecordSuccess(saved)
	}
	return res, nil
}

func (c *Controller) emit(ctx context.Context, e *audit.Event) {
	if c.auditor != nil {
		c.auditor.Emit(ctx, e)
	}
}
