package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/staybook-backend/internal/orders"
	"github.com/angelmondragon/staybook-backend/pkg/db/models"
	"github.com/angelmondragon/staybook-backend/pkg/logger"
	"github.com/angelmondragon/staybook-backend/pkg/stripe"
)

const (
	defaultPendingSessionAge = 30 * time.Minute
	defaultPendingBatchSize  = 100
)

type pendingSessionStore interface {
	FindWithPendingSessionBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.User, error)
	ClearPendingSessionStagedBefore(ctx context.Context, id uuid.UUID, cutoff time.Time) (bool, error)
}

type sessionFetcher interface {
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*stripe.Session, error)
}

type sessionReconciler interface {
	ReconcileSession(ctx context.Context, in orders.ReconcileInput) (orders.Result, error)
}

type PendingSessionJobParams struct {
	Logger     *logger.Logger
	Users      pendingSessionStore
	Processor  sessionFetcher
	Reconciler sessionReconciler
	Age        time.Duration
	BatchSize  int
}

// NewPendingSessionJob builds the sweep that settles checkout sessions buyers never confirmed.
func NewPendingSessionJob(params PendingSessionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("payment processor required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("order reconciler required")
	}
	age := params.Age
	if age <= 0 {
		age = defaultPendingSessionAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPendingBatchSize
	}
	return &pendingSessionJob{
		logg:       params.Logger,
		users:      params.Users,
		processor:  params.Processor,
		reconciler: params.Reconciler,
		age:        age,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type pendingSessionJob struct {
	logg       *logger.Logger
	users      pendingSessionStore
	processor  sessionFetcher
	reconciler sessionReconciler
	age        time.Duration
	batch      int
	now        func() time.Time
}

func (j *pendingSessionJob) Name() string { return "pending-session-sweep" }

// Run reconciles paid sessions and clears expired ones. Open sessions stay staged. Per-buyer
// failures are collected so one bad session does not block the rest of the batch.
func (j *pendingSessionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.age)
	buyers, err := j.users.FindWithPendingSessionBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("load stale pending sessions: %w", err)
	}

	var errs error
	var recorded, cleared int
	for i := range buyers {
		outcome, err := j.settle(ctx, &buyers[i], cutoff)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("buyer %s: %w", buyers[i].ID, err))
			continue
		}
		switch outcome {
		case outcomeRecorded:
			recorded++
		case outcomeCleared:
			cleared++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"scanned":  len(buyers),
		"recorded": recorded,
		"cleared":  cleared,
		"failed":   len(multierr.Errors(errs)),
	}), "pending session sweep complete")
	return errs
}

type sweepOutcome int

const (
	outcomeKept sweepOutcome = iota
	outcomeRecorded
	outcomeCleared
)

func (j *pendingSessionJob) settle(ctx context.Context, buyer *models.User, cutoff time.Time) (sweepOutcome, error) {
	ref, ok := buyer.PendingSessionRef()
	if !ok {
		_, err := j.users.ClearPendingSessionStagedBefore(ctx, buyer.ID, cutoff)
		return outcomeCleared, err
	}

	session, err := j.processor.RetrieveCheckoutSession(ctx, ref.ID)
	if err != nil {
		return outcomeKept, err
	}

	switch {
	case session.IsPaid():
		listingID, err := uuid.Parse(session.Metadata[stripe.MetadataListingID])
		if err != nil {
			listingID, err = uuid.Parse(ref.Metadata[stripe.MetadataListingID])
		}
		if err != nil {
			return outcomeKept, fmt.Errorf("session %s has no listing metadata", session.ID)
		}
		if _, err := j.reconciler.ReconcileSession(ctx, orders.ReconcileInput{
			BuyerID:   buyer.ID,
			ListingID: listingID,
			Session:   session,
			Source:    orders.SourceSweep,
		}); err != nil {
			return outcomeKept, err
		}
		return outcomeRecorded, nil
	case session.Status == stripe.SessionStatusExpired:
		if _, err := j.users.ClearPendingSessionStagedBefore(ctx, buyer.ID, cutoff); err != nil {
			return outcomeKept, err
		}
		return outcomeCleared, nil
	default:
		return outcomeKept, nil
	}
}
