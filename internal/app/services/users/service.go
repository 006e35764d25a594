// Package users manages registration, authentication and profiles.
package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/earnhub/platform/internal/app/domain/notification"
	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/app/domain/wallet"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/storage"
	"github.com/earnhub/platform/internal/middleware"
	"github.com/earnhub/platform/pkg/logger"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSuspended          = errors.New("account suspended")
	ErrEmailTaken         = errors.New("email already registered")
	ErrKYCNotPending      = errors.New("no pending KYC review")
)

// Mailer sends transactional email. Implementations must be safe to call
// with partial configuration; sending is always non-fatal here.
type Mailer interface {
	SendWelcome(to, name string) error
}

// Config holds token-issuing parameters.
type Config struct {
	JWTSecret  []byte
	TokenTTL   time.Duration
	Issuer     string
	BcryptCost int
}

// Service manages platform members.
type Service struct {
	store    storage.UserStore
	wallet   storage.WalletStore
	notifier *notifications.Service
	mailer   Mailer
	cfg      Config
	log      *logger.Logger
}

// New creates a configured user service.
func New(store storage.UserStore, walletStore storage.WalletStore, notifier *notifications.Service, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{store: store, wallet: walletStore, notifier: notifier, cfg: cfg, log: log}
}

// WithMailer enables transactional email.
func (s *Service) WithMailer(m Mailer) { s.mailer = m }

// Register creates a new member. When referralCode resolves to an existing
// user, the new member joins that user's down-line.
func (s *Service) Register(ctx context.Context, email, password, name, referralCode string) (user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" || !strings.Contains(email, "@") {
		return user.User{}, fmt.Errorf("valid email is required")
	}
	if len(password) < 8 {
		return user.User{}, fmt.Errorf("password must be at least 8 characters")
	}
	if name == "" {
		return user.User{}, fmt.Errorf("name is required")
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return user.User{}, ErrEmailTaken
	}

	referredBy := ""
	if code := strings.TrimSpace(referralCode); code != "" {
		referrer, err := s.store.GetUserByReferralCode(ctx, code)
		if err != nil {
			return user.User{}, fmt.Errorf("unknown referral code %q", code)
		}
		referredBy = referrer.ID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	code, err := s.newReferralCode(ctx)
	if err != nil {
		return user.User{}, err
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         user.RoleUser,
		Status:       user.StatusActive,
		KYCStatus:    user.KYCUnverified,
		PackageTier:  user.DefaultTier,
		ReferralCode: code,
		ReferredBy:   referredBy,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return user.User{}, ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("create user: %w", err)
	}

	if s.mailer != nil {
		if err := s.mailer.SendWelcome(created.Email, created.Name); err != nil {
			s.log.WithError(err).WithField("user_id", created.ID).Warn("welcome email not sent")
		}
	}
	if referredBy != "" {
		s.notifier.Notify(ctx, referredBy, notification.CategoryReferral,
			"New referral", fmt.Sprintf("%s joined with your referral code.", created.Name), created.ID)
	}

	s.log.WithField("user_id", created.ID).Info("user registered")
	return created, nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (user.User, string, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return user.User{}, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return user.User{}, "", ErrInvalidCredentials
	}
	if u.Status == user.StatusSuspended {
		return user.User{}, "", ErrSuspended
	}

	token, err := middleware.NewToken(s.cfg.JWTSecret, u.ID, u.Email, string(u.Role), s.cfg.Issuer, s.cfg.TokenTTL)
	if err != nil {
		return user.User{}, "", fmt.Errorf("sign token: %w", err)
	}
	return u, token, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// UpdateProfile applies profile changes.
func (s *Service) UpdateProfile(ctx context.Context, id string, name, phone *string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return user.User{}, fmt.Errorf("name cannot be empty")
		}
		u.Name = trimmed
	}
	if phone != nil {
		u.Phone = strings.TrimSpace(*phone)
		u.PhoneVerified = false
	}
	return s.store.UpdateUser(ctx, u)
}

// MarkPhoneVerified stamps the user's phone after provider confirmation.
func (s *Service) MarkPhoneVerified(ctx context.Context, id, phone string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.Phone = phone
	u.PhoneVerified = true
	return s.store.UpdateUser(ctx, u)
}

// SubmitKYC moves the user into KYC review.
func (s *Service) SubmitKYC(ctx context.Context, id string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if u.KYCStatus == user.KYCVerified {
		return u, nil
	}
	u.KYCStatus = user.KYCPending
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).Info("KYC submitted")
	return updated, nil
}

// ReviewKYC decides a pending KYC submission.
func (s *Service) ReviewKYC(ctx context.Context, id string, approve bool, reviewerID string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if u.KYCStatus != user.KYCPending {
		return user.User{}, ErrKYCNotPending
	}

	if approve {
		u.KYCStatus = user.KYCVerified
	} else {
		u.KYCStatus = user.KYCRejected
	}
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}

	title, body := "Identity verified", "Your identity verification was approved. Withdrawals are now enabled."
	if !approve {
		title, body = "Identity verification rejected", "Your identity verification was rejected. Please resubmit your documents."
	}
	s.notifier.Notify(ctx, id, notification.CategorySystem, title, body, "")

	s.log.WithField("user_id", id).
		WithField("reviewer_id", reviewerID).
		WithField("approved", approve).
		Info("KYC reviewed")
	return updated, nil
}

// AddXP grants experience points.
func (s *Service) AddXP(ctx context.Context, id string, xp int64) {
	if xp <= 0 {
		return
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		s.log.WithError(err).WithField("user_id", id).Warn("XP grant skipped")
		return
	}
	u.XP += xp
	if _, err := s.store.UpdateUser(ctx, u); err != nil {
		s.log.WithError(err).WithField("user_id", id).Warn("XP grant not persisted")
	}
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, offset, limit int) ([]user.User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListUsers(ctx, offset, limit)
}

// SetRole assigns a role.
func (s *Service) SetRole(ctx context.Context, id string, role user.Role) (user.User, error) {
	switch role {
	case user.RoleUser, user.RoleModerator, user.RoleAdmin:
	default:
		return user.User{}, fmt.Errorf("unknown role %q", role)
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.Role = role
	return s.store.UpdateUser(ctx, u)
}

// SetStatus suspends or reactivates an account.
func (s *Service) SetStatus(ctx context.Context, id string, status user.Status) (user.User, error) {
	switch status {
	case user.StatusActive, user.StatusSuspended:
	default:
		return user.User{}, fmt.Errorf("unknown status %q", status)
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.Status = status
	return s.store.UpdateUser(ctx, u)
}

// AdjustBalance applies an admin point correction with a ledger entry.
func (s *Service) AdjustBalance(ctx context.Context, id string, delta int64, reason, adminID string) (user.User, error) {
	if delta == 0 {
		return user.User{}, fmt.Errorf("delta cannot be zero")
	}
	updated, err := s.store.AdjustPointsBalance(ctx, id, delta)
	if err != nil {
		return user.User{}, fmt.Errorf("adjust balance: %w", err)
	}
	if _, err := s.wallet.CreateTransaction(ctx, wallet.Transaction{
		UserID:       id,
		Type:         wallet.TxAdminAdjustment,
		Amount:       delta,
		BalanceAfter: updated.PointsBalance,
		Reference:    adminID,
		Description:  reason,
	}); err != nil {
		s.log.WithError(err).WithField("user_id", id).Warn("adjustment transaction not recorded")
	}
	s.log.WithField("user_id", id).
		WithField("admin_id", adminID).
		WithField("delta", delta).
		Info("balance adjusted")
	return updated, nil
}

// CountReferrals returns how many users the given user directly referred.
func (s *Service) CountReferrals(ctx context.Context, id string) (int, error) {
	return s.store.CountReferrals(ctx, id)
}

// newReferralCode generates a unique 8-character code.
func (s *Service) newReferralCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		code := strings.ToUpper(hex.EncodeToString(buf))
		if _, err := s.store.GetUserByReferralCode(ctx, code); err != nil {
			return code, nil
		}
	}
	return "", fmt.Errorf("referral code space exhausted")
}
