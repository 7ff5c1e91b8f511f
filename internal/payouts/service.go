package payouts

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/staybook-backend/internal/users"
	"github.com/angelmondragon/staybook-backend/pkg/config"
	"github.com/angelmondragon/staybook-backend/pkg/db"
	"github.com/angelmondragon/staybook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/staybook-backend/pkg/errors"
	"github.com/angelmondragon/staybook-backend/pkg/logger"
	"github.com/angelmondragon/staybook-backend/pkg/stripe"
)

type accountProcessor interface {
	CreateAccount(ctx context.Context) (*stripe.Account, error)
	RetrieveAccount(ctx context.Context, accountID string) (*stripe.Account, error)
	CreateAccountLink(ctx context.Context, accountID, redirectURL string) (*stripe.AccountLink, error)
	CreateLoginLink(ctx context.Context, accountID, redirectURL string) (string, error)
	RetrieveBalance(ctx context.Context, accountID string) (*stripe.Balance, error)
}

type ServiceParams struct {
	Users     *users.Repository
	Processor accountProcessor
	Config    config.StripeConfig
	Logger    *logger.Logger
}

// Service manages sellers' connected payout accounts.
type Service struct {
	users     *users.Repository
	processor accountProcessor
	cfg       config.StripeConfig
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repository required")
	}
	if params.Processor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment processor required")
	}
	return &Service{
		users:     params.Users,
		processor: params.Processor,
		cfg:       params.Config,
		logg:      params.Logger,
	}, nil
}

// CreateOrEnsureAccount makes sure the seller has exactly one connected account and returns
// a fresh onboarding URL prefilled with the seller's email.
func (s *Service) CreateOrEnsureAccount(ctx context.Context, sellerID uuid.UUID) (string, error) {
	seller, err := s.loadSeller(ctx, sellerID)
	if err != nil {
		return "", err
	}

	accountID, err := s.ensureAccount(ctx, seller)
	if err != nil {
		return "", err
	}

	link, err := s.processor.CreateAccountLink(ctx, accountID, s.cfg.OnboardingRedirect)
	if err != nil {
		return "", err
	}
	return stripe.OnboardingURL(link, seller.Email), nil
}

func (s *Service) ensureAccount(ctx context.Context, seller *models.User) (string, error) {
	if seller.HasPayoutAccount() {
		return *seller.PayoutAccountID, nil
	}

	acct, err := s.processor.CreateAccount(ctx)
	if err != nil {
		return "", err
	}

	won, err := s.users.SetPayoutAccountIfEmpty(ctx, seller.ID, acct.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payout account")
	}
	if won {
		return acct.ID, nil
	}

	// Another request stored an account first; keep theirs.
	current, err := s.loadSeller(ctx, seller.ID)
	if err != nil {
		return "", err
	}
	if !current.HasPayoutAccount() {
		return "", pkgerrors.New(pkgerrors.CodeConflict, "payout account could not be stored")
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"seller_id":        seller.ID.String(),
			"orphaned_account": acct.ID,
			"account_id":       *current.PayoutAccountID,
		})
		s.logg.Warn(logCtx, "concurrent payout account creation; keeping stored account")
	}
	return *current.PayoutAccountID, nil
}

// GetAccountStatus refreshes the cached account snapshot and returns the seller.
func (s *Service) GetAccountStatus(ctx context.Context, sellerID uuid.UUID) (*users.UserDTO, error) {
	seller, err := s.loadSellerWithAccount(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	acct, err := s.processor.RetrieveAccount(ctx, *seller.PayoutAccountID)
	if err != nil {
		return nil, err
	}
	snapshot, err := acct.Snapshot()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode account snapshot")
	}
	if err := s.users.UpdatePayoutSnapshot(ctx, seller.ID, snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store account snapshot")
	}
	seller.PayoutAccountSnapshot = snapshot
	return users.FromModel(seller), nil
}

// GetAccountBalance returns the connected account balance. Failures are errors, never a
// zero balance.
func (s *Service) GetAccountBalance(ctx context.Context, sellerID uuid.UUID) (*stripe.Balance, error) {
	seller, err := s.loadSellerWithAccount(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return s.processor.RetrieveBalance(ctx, *seller.PayoutAccountID)
}

// GetPayoutSettingsLink returns a dashboard login link for managing payout settings.
func (s *Service) GetPayoutSettingsLink(ctx context.Context, sellerID uuid.UUID) (string, error) {
	seller, err := s.loadSellerWithAccount(ctx, sellerID)
	if err != nil {
		return "", err
	}
	return s.processor.CreateLoginLink(ctx, *seller.PayoutAccountID, s.cfg.SettingsRedirect)
}

func (s *Service) loadSeller(ctx context.Context, sellerID uuid.UUID) (*models.User, error) {
	seller, err := s.users.FindByID(ctx, sellerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	return seller, nil
}

func (s *Service) loadSellerWithAccount(ctx context.Context, sellerID uuid.UUID) (*models.User, error) {
	seller, err := s.loadSeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if !seller.HasPayoutAccount() {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "payout account not set up").
			WithDetails(map[string]any{"action": "onboard"})
	}
	return seller, nil
}
