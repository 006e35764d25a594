// Package verify integrates a third-party phone verification provider.
package verify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/earnhub/platform/internal/app/services/users"
	"github.com/earnhub/platform/internal/config"
	"github.com/earnhub/platform/internal/httputil"
	"github.com/earnhub/platform/pkg/logger"
)

// Errors
var (
	ErrDisabled    = errors.New("phone verification is not configured")
	ErrBadPhone    = errors.New("invalid phone number")
	ErrCodeInvalid = errors.New("verification code rejected")
)

var phonePattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// Service starts and checks phone verification codes.
type Service struct {
	client   *httputil.Client
	accounts *users.Service
	log      *logger.Logger
}

// New creates the verification service. An empty base URL yields a disabled
// service.
func New(cfg config.VerificationConfig, accounts *users.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("verify")
	}
	s := &Service{accounts: accounts, log: log}
	if cfg.BaseURL != "" {
		s.client = httputil.NewClient(httputil.ClientConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
	}
	return s
}

// Enabled reports whether a provider is configured.
func (s *Service) Enabled() bool {
	return s.client != nil
}

// Start asks the provider to send a code to the phone. Returns the provider
// session ID used by Check.
func (s *Service) Start(ctx context.Context, phone string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	phone = normalizePhone(phone)
	if !phonePattern.MatchString(phone) {
		return "", ErrBadPhone
	}

	resp, err := s.client.Post(ctx, "/v1/verifications", map[string]string{
		"phone":   phone,
		"channel": "sms",
	})
	if err != nil {
		return "", fmt.Errorf("start verification: %w", err)
	}
	body, err := httputil.ReadBody(resp, 64<<10)
	if err != nil {
		return "", fmt.Errorf("start verification: %w", err)
	}

	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		id = gjson.GetBytes(body, "verification.id").String()
	}
	if id == "" {
		return "", fmt.Errorf("provider response missing verification id")
	}

	s.log.WithField("verification_id", id).Info("phone verification started")
	return id, nil
}

// Check confirms the code against the provider and stamps the user's phone
// as verified on success.
func (s *Service) Check(ctx context.Context, userID, verificationID, phone, code string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	phone = normalizePhone(phone)
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrCodeInvalid
	}

	resp, err := s.client.Post(ctx, "/v1/verifications/"+verificationID+"/check", map[string]string{
		"phone": phone,
		"code":  code,
	})
	if err != nil {
		return fmt.Errorf("check verification: %w", err)
	}
	body, err := httputil.ReadBody(resp, 64<<10)
	if err != nil {
		return fmt.Errorf("check verification: %w", err)
	}

	status := gjson.GetBytes(body, "status").String()
	if status != "approved" && !gjson.GetBytes(body, "valid").Bool() {
		return ErrCodeInvalid
	}

	if _, err := s.accounts.MarkPhoneVerified(ctx, userID, phone); err != nil {
		return fmt.Errorf("stamp phone: %w", err)
	}
	s.log.WithField("user_id", userID).Info("phone verified")
	return nil
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if r == '+' || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
