// Package mailer sends transactional email over SMTP.
package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/earnhub/platform/internal/config"
	"github.com/earnhub/platform/pkg/logger"
)

// Service sends templated email. A nil or unconfigured service drops every
// message, so callers never need to branch on mail being enabled.
type Service struct {
	cfg config.SMTPConfig
	log *logger.Logger

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a mail service. An empty SMTP host yields a disabled service.
func New(cfg config.SMTPConfig, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("mailer")
	}
	return &Service{cfg: cfg, log: log, send: smtp.SendMail}
}

// Enabled reports whether email is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.cfg.Host != ""
}

// SendWelcome greets a new member.
func (s *Service) SendWelcome(to, name string) error {
	return s.deliver(to, "Welcome to EarnHub",
		fmt.Sprintf("Hi %s,\r\n\r\nYour account is ready. Complete tasks to start earning points.\r\n", name))
}

// SendWithdrawalDecision reports a withdrawal outcome.
func (s *Service) SendWithdrawalDecision(to string, approved bool, amount int64) error {
	if approved {
		return s.deliver(to, "Withdrawal approved",
			fmt.Sprintf("Your withdrawal of %d was approved and queued for payout.\r\n", amount))
	}
	return s.deliver(to, "Withdrawal rejected",
		fmt.Sprintf("Your withdrawal of %d was rejected. The amount was returned to your balance.\r\n", amount))
}

// SendLotteryWin congratulates a lottery winner.
func (s *Service) SendLotteryWin(to, lotteryTitle, prizeLabel string) error {
	return s.deliver(to, "You won a prize",
		fmt.Sprintf("Congratulations! Your ticket won %s in %q.\r\n", prizeLabel, lotteryTitle))
}

func (s *Service) deliver(to, subject, body string) error {
	if !s.Enabled() {
		return nil
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("recipient is required")
	}

	msg := strings.Join([]string{
		"From: " + s.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	s.log.WithField("to", to).WithField("subject", subject).Debug("email sent")
	return nil
}
