// Package plans manages subscription tiers and upgrades.
package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/earnhub/platform/internal/app/domain/notification"
	"github.com/earnhub/platform/internal/app/domain/plan"
	"github.com/earnhub/platform/internal/app/domain/wallet"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/storage"
	"github.com/earnhub/platform/internal/config"
	"github.com/earnhub/platform/pkg/logger"
)

// Errors
var (
	ErrUnknownTier = errors.New("unknown package tier")
	ErrNotUpgrade  = errors.New("can only upgrade to a higher tier")
)

// Service manages plan definitions and purchases.
type Service struct {
	store    storage.PlanStore
	users    storage.UserStore
	wallet   storage.WalletStore
	notifier *notifications.Service
	log      *logger.Logger
}

// New creates a configured plan service.
func New(store storage.PlanStore, userStore storage.UserStore, walletStore storage.WalletStore,
	notifier *notifications.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("plans")
	}
	return &Service{store: store, users: userStore, wallet: walletStore, notifier: notifier, log: log}
}

// Seed upserts the configured tiers into the store. Unknown tier codes in
// the config are skipped with a warning.
func (s *Service) Seed(ctx context.Context, cfg *config.PackagesConfig) error {
	if cfg == nil {
		cfg = config.DefaultPackagesConfig()
	}
	for code, settings := range cfg.Packages {
		code = strings.ToUpper(code)
		if plan.Rank(code) < 0 {
			s.log.WithField("tier", code).Warn("skipping unknown tier code")
			continue
		}
		if _, err := s.store.UpsertPlan(ctx, plan.Plan{
			Tier:                 code,
			Name:                 settings.Name,
			Description:          settings.Description,
			PricePoints:          settings.PricePoints,
			DailyTaskLimit:       settings.DailyTaskLimit,
			WithdrawalFeePercent: settings.WithdrawalFeePercent,
			ReferralBonusPercent: settings.ReferralBonusPercent,
		}); err != nil {
			return fmt.Errorf("seed plan %s: %w", code, err)
		}
	}
	s.log.WithField("plans", len(cfg.Packages)).Info("plans seeded")
	return nil
}

// List returns all tiers ordered lowest to highest.
func (s *Service) List(ctx context.Context) ([]plan.Plan, error) {
	return s.store.ListPlans(ctx)
}

// Get returns one tier.
func (s *Service) Get(ctx context.Context, tier string) (plan.Plan, error) {
	p, err := s.store.GetPlan(ctx, strings.ToUpper(strings.TrimSpace(tier)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return plan.Plan{}, ErrUnknownTier
		}
		return plan.Plan{}, err
	}
	return p, nil
}

// Purchase upgrades the user to a higher tier, debiting the plan price.
// Downgrades and same-tier purchases are rejected.
func (s *Service) Purchase(ctx context.Context, userID, tier string) (plan.Plan, error) {
	target, err := s.Get(ctx, tier)
	if err != nil {
		return plan.Plan{}, err
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return plan.Plan{}, err
	}
	if plan.Rank(target.Tier) <= plan.Rank(u.PackageTier) {
		return plan.Plan{}, ErrNotUpgrade
	}

	debited, err := s.users.AdjustPointsBalance(ctx, userID, -target.PricePoints)
	if err != nil {
		return plan.Plan{}, fmt.Errorf("debit plan price: %w", err)
	}

	u, err = s.users.GetUser(ctx, userID)
	if err != nil {
		return plan.Plan{}, err
	}
	u.PackageTier = target.Tier
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		if _, rbErr := s.users.AdjustPointsBalance(ctx, userID, target.PricePoints); rbErr != nil {
			s.log.WithError(rbErr).WithField("user_id", userID).Error("plan debit rollback failed")
		}
		return plan.Plan{}, fmt.Errorf("assign tier: %w", err)
	}

	if _, err := s.wallet.CreateTransaction(ctx, wallet.Transaction{
		UserID:       userID,
		Type:         wallet.TxPackagePurchase,
		Amount:       -target.PricePoints,
		BalanceAfter: debited.PointsBalance,
		Reference:    target.Tier,
		Description:  fmt.Sprintf("upgrade to %s", target.Name),
	}); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("plan transaction not recorded")
	}

	s.notifier.Notify(ctx, userID, notification.CategorySystem,
		"Package upgraded", fmt.Sprintf("You are now on the %s plan.", target.Name), target.Tier)

	s.log.WithField("user_id", userID).WithField("tier", target.Tier).Info("plan purchased")
	return target, nil
}
