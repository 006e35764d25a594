// Package referrals implements the referral-commission cascade and the
// commission-level configuration.
package referrals

import (
	"context"
	"fmt"
	"time"

	"github.com/earnhub/platform/internal/app/cache"
	"github.com/earnhub/platform/internal/app/domain/notification"
	"github.com/earnhub/platform/internal/app/domain/referral"
	"github.com/earnhub/platform/internal/app/domain/wallet"
	"github.com/earnhub/platform/internal/app/storage"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/pkg/logger"
)

const leaderboardCacheKey = "referrals:leaderboard"

// Service walks the up-line chain and credits commissions.
type Service struct {
	users    storage.UserStore
	wallet   storage.WalletStore
	store    storage.ReferralStore
	plans    storage.PlanStore
	notifier *notifications.Service
	cache    *cache.Cache
	log      *logger.Logger
}

// New creates a configured referral service.
func New(users storage.UserStore, walletStore storage.WalletStore, store storage.ReferralStore, notifier *notifications.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("referrals")
	}
	return &Service{
		users:    users,
		wallet:   walletStore,
		store:    store,
		notifier: notifier,
		log:      log,
	}
}

// WithPlans enables tier bonus multipliers on commission credits.
func (s *Service) WithPlans(plans storage.PlanStore) {
	s.plans = plans
}

// WithCache enables leaderboard caching.
func (s *Service) WithCache(c *cache.Cache) {
	s.cache = c
}

// Distribute walks the earner's referred-by chain, crediting the referrer at
// each depth that has a configured rule for that level number. Depths without
// a rule are walked but not credited, so a sparse table (say, level 2 only)
// pays the referrer two hops up and nobody else. A rule whose amount rounds
// to zero produces no credit. It returns the number of commissions credited.
//
// Distribute never fails the caller: every error is logged and swallowed so
// the originating task or course completion always succeeds.
func (s *Service) Distribute(ctx context.Context, sourceUserID string, basePoints int64, sourceRef string) int {
	if basePoints <= 0 {
		return 0
	}

	rules, maxLevel := s.commissionRules(ctx)

	source, err := s.users.GetUser(ctx, sourceUserID)
	if err != nil {
		s.log.WithError(err).
			WithField("source_user_id", sourceUserID).
			Warn("referral cascade aborted: earner lookup failed")
		return 0
	}

	credited := 0
	referrerID := source.ReferredBy
	for depth := 1; depth <= maxLevel; depth++ {
		if referrerID == "" {
			break
		}

		referrer, err := s.users.GetUser(ctx, referrerID)
		if err != nil {
			s.log.WithError(err).
				WithField("referrer_id", referrerID).
				WithField("level", depth).
				Warn("referral cascade stopped: referrer lookup failed")
			break
		}

		if lvl, ok := rules[depth]; ok {
			amount := commissionAmount(lvl, basePoints)
			if amount > 0 {
				amount = s.applyTierBonus(ctx, referrer.PackageTier, amount)
				if s.credit(ctx, referrer.ID, source.ID, depth, amount, sourceRef) {
					credited++
				}
			}
		}

		referrerID = referrer.ReferredBy
	}

	if credited > 0 {
		s.cache.Invalidate(ctx, leaderboardCacheKey)
	}
	return credited
}

// commissionRules loads the configured table indexed by level number,
// bounded to the cascade cap, falling back to a single level-1 percentage
// rule. The second return is the deepest configured level.
func (s *Service) commissionRules(ctx context.Context) (map[int]referral.CommissionLevel, int) {
	levels, err := s.store.ListCommissionLevels(ctx)
	if err != nil {
		s.log.WithError(err).Warn("commission levels unavailable; using default rate")
		levels = nil
	}
	if len(levels) == 0 {
		levels = []referral.CommissionLevel{{
			Level: 1,
			Kind:  referral.KindPercentage,
			Value: referral.DefaultLevelOnePercent,
		}}
	}

	rules := make(map[int]referral.CommissionLevel, len(levels))
	maxLevel := 0
	for _, lvl := range levels {
		if lvl.Level < 1 || lvl.Level > referral.MaxCascadeLevels {
			continue
		}
		rules[lvl.Level] = lvl
		if lvl.Level > maxLevel {
			maxLevel = lvl.Level
		}
	}
	return rules, maxLevel
}

// commissionAmount computes one level's credit. Invalid rules yield 0, never
// a negative amount.
func commissionAmount(lvl referral.CommissionLevel, basePoints int64) int64 {
	var amount int64
	switch lvl.Kind {
	case referral.KindPercentage:
		amount = basePoints * lvl.Value / 100
	case referral.KindFlat:
		amount = lvl.Value
	default:
		return 0
	}
	if amount < 0 {
		return 0
	}
	return amount
}

// applyTierBonus scales the amount by the referrer's package multiplier.
func (s *Service) applyTierBonus(ctx context.Context, tier string, amount int64) int64 {
	if s.plans == nil || tier == "" {
		return amount
	}
	p, err := s.plans.GetPlan(ctx, tier)
	if err != nil || p.ReferralBonusPercent <= 0 {
		return amount
	}
	return amount * int64(p.ReferralBonusPercent) / 100
}

// credit performs the bookkeeping for one commission: balance, transaction,
// earning record, notification. Partial failures are logged; the credit
// counts once the balance adjustment lands.
func (s *Service) credit(ctx context.Context, referrerID, sourceUserID string, level int, amount int64, sourceRef string) bool {
	updated, err := s.users.AdjustPointsBalance(ctx, referrerID, amount)
	if err != nil {
		s.log.WithError(err).
			WithField("referrer_id", referrerID).
			WithField("level", level).
			Warn("commission credit failed")
		return false
	}

	if _, err := s.wallet.CreateTransaction(ctx, wallet.Transaction{
		UserID:       referrerID,
		Type:         wallet.TxReferralBonus,
		Amount:       amount,
		BalanceAfter: updated.PointsBalance,
		Reference:    sourceRef,
		Description:  fmt.Sprintf("level %d referral commission", level),
	}); err != nil {
		s.log.WithError(err).
			WithField("referrer_id", referrerID).
			Warn("commission transaction not recorded")
	}

	if _, err := s.store.CreateEarning(ctx, referral.Earning{
		ReferrerID:   referrerID,
		SourceUserID: sourceUserID,
		Level:        level,
		Amount:       amount,
		SourceRef:    sourceRef,
	}); err != nil {
		s.log.WithError(err).
			WithField("referrer_id", referrerID).
			Warn("referral earning not recorded")
	}

	s.notifier.Notify(ctx, referrerID, notification.CategoryReferral,
		"Referral commission earned",
		fmt.Sprintf("You earned %d points from a level %d referral.", amount, level),
		sourceRef)

	s.log.WithField("referrer_id", referrerID).
		WithField("level", level).
		WithField("amount", amount).
		Info("referral commission credited")
	return true
}

// SetCommissionLevel creates or replaces one level of the table.
func (s *Service) SetCommissionLevel(ctx context.Context, level int, kind referral.RuleKind, value int64) (referral.CommissionLevel, error) {
	if level < 1 || level > referral.MaxCascadeLevels {
		return referral.CommissionLevel{}, fmt.Errorf("level must be between 1 and %d", referral.MaxCascadeLevels)
	}
	switch kind {
	case referral.KindPercentage:
		if value < 0 || value > 100 {
			return referral.CommissionLevel{}, fmt.Errorf("percentage must be between 0 and 100")
		}
	case referral.KindFlat:
		if value < 0 {
			return referral.CommissionLevel{}, fmt.Errorf("flat amount cannot be negative")
		}
	default:
		return referral.CommissionLevel{}, fmt.Errorf("unknown rule kind %q", kind)
	}

	lvl, err := s.store.UpsertCommissionLevel(ctx, referral.CommissionLevel{
		Level: level,
		Kind:  kind,
		Value: value,
	})
	if err != nil {
		return referral.CommissionLevel{}, fmt.Errorf("upsert commission level: %w", err)
	}
	s.log.WithField("level", level).
		WithField("kind", string(kind)).
		WithField("value", value).
		Info("commission level configured")
	return lvl, nil
}

// CommissionLevels returns the configured table ordered by level.
func (s *Service) CommissionLevels(ctx context.Context) ([]referral.CommissionLevel, error) {
	return s.store.ListCommissionLevels(ctx)
}

// DeleteCommissionLevel removes one level from the table.
func (s *Service) DeleteCommissionLevel(ctx context.Context, level int) error {
	if err := s.store.DeleteCommissionLevel(ctx, level); err != nil {
		return fmt.Errorf("delete commission level: %w", err)
	}
	return nil
}

// Earnings lists a referrer's commission history.
func (s *Service) Earnings(ctx context.Context, referrerID string, limit int) ([]referral.Earning, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListEarningsByReferrer(ctx, referrerID, limit)
}

// Leaderboard returns the top referrers by total commission, cached briefly.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]referral.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var cached []referral.LeaderboardEntry
	if s.cache.GetJSON(ctx, leaderboardCacheKey, &cached) && len(cached) >= limit {
		return cached[:limit], nil
	}

	entries, err := s.store.ReferralLeaderboard(ctx, 100)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	s.cache.SetJSON(ctx, leaderboardCacheKey, entries, time.Minute)

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
