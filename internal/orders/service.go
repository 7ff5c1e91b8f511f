package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/staybook-backend/internal/users"
	"github.com/angelmondragon/staybook-backend/pkg/db"
	"github.com/angelmondragon/staybook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/staybook-backend/pkg/errors"
	"github.com/angelmondragon/staybook-backend/pkg/logger"
	"github.com/angelmondragon/staybook-backend/pkg/metrics"
	"github.com/angelmondragon/staybook-backend/pkg/outbox"
	"github.com/angelmondragon/staybook-backend/pkg/stripe"
)

const (
	sessionUniqueConstraint = "orders_session_id_key"

	defaultListLimit = 20
	maxListLimit     = 100
)

var errAlreadyRecorded = errors.New("checkout session already recorded")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type sessionFetcher interface {
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*stripe.Session, error)
}

// ServiceParams wires the order reconciler.
type ServiceParams struct {
	Repository Repository
	Users      *users.Repository
	TxRunner   txRunner
	Outbox     outboxPublisher
	Processor  sessionFetcher
	Metrics    *metrics.ReconcileMetrics
	Logger     *logger.Logger
}

// Service turns paid checkout sessions into orders. The processor is the source of truth
// for payment state; the unique index on session_id guarantees one order per session.
type Service struct {
	repo      Repository
	users     *users.Repository
	tx        txRunner
	outbox    outboxPublisher
	processor sessionFetcher
	metrics   *metrics.ReconcileMetrics
	logg      *logger.Logger
}

// ReconcileInput names the buyer/listing a session is expected to belong to.
type ReconcileInput struct {
	BuyerID   uuid.UUID
	ListingID uuid.UUID
	Session   *stripe.Session
	Source    Source
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repository required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	}
	if params.Processor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment processor required")
	}
	return &Service{
		repo:      params.Repository,
		users:     params.Users,
		tx:        params.TxRunner,
		outbox:    params.Outbox,
		processor: params.Processor,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// ConfirmAndRecord re-checks the buyer's staged session with the processor and records an
// order when it is paid. Calling it any number of times yields at most one order.
func (s *Service) ConfirmAndRecord(ctx context.Context, buyerID, listingID uuid.UUID) (Result, error) {
	if listingID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "listing_id is required")
	}

	buyer, err := s.users.FindByID(ctx, buyerID)
	if err != nil {
		if db.IsNotFound(err) {
			return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}

	ref, ok := buyer.PendingSessionRef()
	if !ok {
		s.metrics.IncOutcome(string(SourceConfirm), string(StatusNothingPending))
		return Result{Status: StatusNothingPending}, nil
	}

	session, err := s.processor.RetrieveCheckoutSession(ctx, ref.ID)
	if err != nil {
		return Result{}, err
	}

	return s.ReconcileSession(ctx, ReconcileInput{
		BuyerID:   buyerID,
		ListingID: listingID,
		Session:   session,
		Source:    SourceConfirm,
	})
}

// ReconcileSession records an order for a paid session exactly once and clears the buyer's
// staged session when it still points at this session.
func (s *Service) ReconcileSession(ctx context.Context, in ReconcileInput) (Result, error) {
	if in.Session == nil || in.Session.ID == "" {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "checkout session is required")
	}
	if in.BuyerID == uuid.Nil || in.ListingID == uuid.Nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "buyer and listing are required")
	}
	if err := checkOwnership(in); err != nil {
		return Result{}, err
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"session_id": in.Session.ID,
			"buyer_id":   in.BuyerID.String(),
			"listing_id": in.ListingID.String(),
			"source":     string(in.Source),
		})
	}

	if !in.Session.IsPaid() {
		return s.finish(ctx, in.Source, Result{Status: StatusPending}), nil
	}

	existing, err := s.repo.FindBySessionID(ctx, in.Session.ID)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order by session")
	}
	if existing != nil {
		if err := s.clearIfPending(ctx, s.users, in.BuyerID, in.Session.ID); err != nil {
			return Result{}, err
		}
		return s.finish(ctx, in.Source, Result{Success: true, Status: StatusAlreadyRecorded, OrderID: &existing.ID}), nil
	}

	snapshot, err := in.Session.Snapshot()
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode session snapshot")
	}
	order := &models.Order{
		ID:          uuid.New(),
		ListingID:   in.ListingID,
		SessionID:   in.Session.ID,
		Session:     snapshot,
		OrderedByID: in.BuyerID,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, sessionUniqueConstraint) {
				return errAlreadyRecorded
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}
		if err := s.clearIfPending(ctx, s.users.WithTx(tx), in.BuyerID, in.Session.ID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     outbox.EventOrderCreated,
			AggregateType: outbox.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: in.BuyerID, Source: string(in.Source)},
			Data: outbox.OrderCreatedEvent{
				OrderID:   order.ID,
				ListingID: order.ListingID,
				BuyerID:   order.OrderedByID,
				SessionID: order.SessionID,
				CreatedAt: time.Now().UTC(),
			},
		})
	})
	switch {
	case errors.Is(err, errAlreadyRecorded):
		// A concurrent reconciler won the insert and our transaction rolled back.
		if err := s.clearIfPending(ctx, s.users, in.BuyerID, in.Session.ID); err != nil {
			return Result{}, err
		}
		return s.finish(ctx, in.Source, Result{Success: true, Status: StatusAlreadyRecorded}), nil
	case err != nil:
		if pkgerrors.As(err) != nil {
			return Result{}, err
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order")
	}

	return s.finish(ctx, in.Source, Result{Success: true, Status: StatusRecorded, OrderID: &order.ID}), nil
}

// ListBuyerOrders returns the buyer's orders, newest first.
func (s *Service) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, limit int) ([]OrderDTO, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	rows, err := s.repo.ListByBuyer(ctx, buyerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

func (s *Service) clearIfPending(ctx context.Context, store *users.Repository, buyerID uuid.UUID, sessionID string) error {
	buyer, err := store.FindByID(ctx, buyerID)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "buyer not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer")
	}
	ref, ok := buyer.PendingSessionRef()
	if !ok || ref.ID != sessionID {
		return nil
	}
	if err := store.ClearPendingSession(ctx, buyerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear pending session")
	}
	return nil
}

func (s *Service) finish(ctx context.Context, source Source, res Result) Result {
	s.metrics.IncOutcome(string(source), string(res.Status))
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "status", string(res.Status)), "checkout session reconciled")
	}
	return res
}

func checkOwnership(in ReconcileInput) error {
	meta := in.Session.Metadata
	if listing := meta[stripe.MetadataListingID]; listing != "" && listing != in.ListingID.String() {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session belongs to a different listing").
			WithDetails(map[string]any{"listing_id": in.ListingID.String()})
	}
	if buyer := meta[stripe.MetadataBuyerID]; buyer != "" && buyer != in.BuyerID.String() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "checkout session belongs to a different buyer")
	}
	return nil
}
