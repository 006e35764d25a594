package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/earnhub/platform/internal/app/cache"
	"github.com/earnhub/platform/internal/app/scheduler"
	"github.com/earnhub/platform/internal/app/services/adminpanel"
	coursesvc "github.com/earnhub/platform/internal/app/services/courses"
	feedsvc "github.com/earnhub/platform/internal/app/services/feed"
	lotterysvc "github.com/earnhub/platform/internal/app/services/lottery"
	"github.com/earnhub/platform/internal/app/services/mailer"
	marketsvc "github.com/earnhub/platform/internal/app/services/market"
	"github.com/earnhub/platform/internal/app/services/notifications"
	planssvc "github.com/earnhub/platform/internal/app/services/plans"
	"github.com/earnhub/platform/internal/app/services/referrals"
	taskssvc "github.com/earnhub/platform/internal/app/services/tasks"
	"github.com/earnhub/platform/internal/app/services/uploads"
	userssvc "github.com/earnhub/platform/internal/app/services/users"
	"github.com/earnhub/platform/internal/app/services/verify"
	walletsvc "github.com/earnhub/platform/internal/app/services/wallet"
	"github.com/earnhub/platform/internal/app/storage"
	"github.com/earnhub/platform/internal/app/storage/memory"
	"github.com/earnhub/platform/internal/app/system"
	"github.com/earnhub/platform/internal/config"
	"github.com/earnhub/platform/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users         storage.UserStore
	Tasks         storage.TaskStore
	Wallet        storage.WalletStore
	Referrals     storage.ReferralStore
	Lottery       storage.LotteryStore
	Market        storage.MarketStore
	Plans         storage.PlanStore
	Courses       storage.CourseStore
	Feed          storage.FeedStore
	Notifications storage.NotificationStore
}

// Options carries optional infrastructure dependencies.
type Options struct {
	Cache *cache.Cache // Enables leaderboard caching
	DB    *sqlx.DB     // Enables SQL-side dashboard aggregation
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Users         *userssvc.Service
	Tasks         *taskssvc.Service
	Wallet        *walletsvc.Service
	Referrals     *referrals.Service
	Lottery       *lotterysvc.Service
	Market        *marketsvc.Service
	Plans         *planssvc.Service
	Courses       *coursesvc.Service
	Feed          *feedsvc.Service
	Notifications *notifications.Service
	Verify        *verify.Service
	Uploads       *uploads.Service
	Mailer        *mailer.Service
	Panel         *adminpanel.Service
}

// New builds a fully initialised application with the provided stores.
func New(cfg *config.Config, stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Tasks == nil {
		stores.Tasks = mem
	}
	if stores.Wallet == nil {
		stores.Wallet = mem
	}
	if stores.Referrals == nil {
		stores.Referrals = mem
	}
	if stores.Lottery == nil {
		stores.Lottery = mem
	}
	if stores.Market == nil {
		stores.Market = mem
	}
	if stores.Plans == nil {
		stores.Plans = mem
	}
	if stores.Courses == nil {
		stores.Courses = mem
	}
	if stores.Feed == nil {
		stores.Feed = mem
	}
	if stores.Notifications == nil {
		stores.Notifications = mem
	}

	manager := system.NewManager()

	notifier := notifications.New(stores.Notifications, log)
	mail := mailer.New(cfg.SMTP, log)

	accounts := userssvc.New(stores.Users, stores.Wallet, notifier, userssvc.Config{
		JWTSecret:  []byte(cfg.Auth.JWTSecret),
		TokenTTL:   cfg.Auth.TokenTTL,
		Issuer:     cfg.Auth.Issuer,
		BcryptCost: cfg.Auth.BcryptCost,
	}, log)
	if mail.Enabled() {
		accounts.WithMailer(mail)
	}

	referralService := referrals.New(stores.Users, stores.Wallet, stores.Referrals, notifier, log)
	referralService.WithPlans(stores.Plans)
	if opts.Cache != nil {
		referralService.WithCache(opts.Cache)
	}

	taskService := taskssvc.New(stores.Tasks, stores.Users, stores.Wallet, accounts, referralService, notifier, log).
		WithPlans(stores.Plans)
	walletService := walletsvc.New(stores.Wallet, stores.Users, notifier, log).
		WithPlans(stores.Plans)
	lotteryService := lotterysvc.New(stores.Lottery, stores.Users, stores.Wallet, notifier, log)
	if mail.Enabled() {
		lotteryService.WithMailer(mail)
	}
	marketService := marketsvc.New(stores.Market, stores.Users, stores.Wallet, notifier, log)
	planService := planssvc.New(stores.Plans, stores.Users, stores.Wallet, notifier, log)
	courseService := coursesvc.New(stores.Courses, stores.Users, stores.Wallet, accounts, referralService, notifier, log)
	feedService := feedsvc.New(stores.Feed, notifier, log)
	verifyService := verify.New(cfg.Verification, accounts, log)
	uploadService := uploads.New(cfg.Storage, log)

	panel := adminpanel.New(stores.Users, stores.Tasks, stores.Wallet, stores.Lottery, stores.Market, log)
	if opts.DB != nil {
		panel.WithDB(opts.DB)
	}

	jobs, err := scheduler.New(taskService, lotteryService, stores.Wallet, notifier, log)
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}
	if err := manager.Register(jobs); err != nil {
		return nil, fmt.Errorf("register scheduler: %w", err)
	}

	return &Application{
		manager:       manager,
		log:           log,
		Users:         accounts,
		Tasks:         taskService,
		Wallet:        walletService,
		Referrals:     referralService,
		Lottery:       lotteryService,
		Market:        marketService,
		Plans:         planService,
		Courses:       courseService,
		Feed:          feedService,
		Notifications: notifier,
		Verify:        verifyService,
		Uploads:       uploadService,
		Mailer:        mail,
		Panel:         panel,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
