// Package httpapi exposes the platform REST API.
package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/earnhub/platform/internal/app"
	"github.com/earnhub/platform/internal/app/metrics"
	coursesvc "github.com/earnhub/platform/internal/app/services/courses"
	feedsvc "github.com/earnhub/platform/internal/app/services/feed"
	lotterysvc "github.com/earnhub/platform/internal/app/services/lottery"
	marketsvc "github.com/earnhub/platform/internal/app/services/market"
	planssvc "github.com/earnhub/platform/internal/app/services/plans"
	taskssvc "github.com/earnhub/platform/internal/app/services/tasks"
	"github.com/earnhub/platform/internal/app/services/uploads"
	userssvc "github.com/earnhub/platform/internal/app/services/users"
	"github.com/earnhub/platform/internal/app/services/verify"
	walletsvc "github.com/earnhub/platform/internal/app/services/wallet"
	"github.com/earnhub/platform/internal/app/storage"
	"github.com/earnhub/platform/internal/middleware"
	"github.com/earnhub/platform/pkg/logger"
)

// PublicPaths are served without authentication.
var PublicPaths = []string{
	"/health",
	"/metrics",
	"/api/auth/register",
	"/api/auth/login",
	"/api/plans",
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
	log   *logger.Logger
}

// RouterOptions carries optional router features.
type RouterOptions struct {
	// AuditLogPath appends every admin audit entry to a JSONL file when set.
	AuditLogPath string
	// AuditLogSize bounds the in-memory audit ring. Zero selects the default.
	AuditLogSize int
}

// NewRouter returns the REST API router with shared middleware applied.
func NewRouter(application *app.Application, auth *middleware.AuthMiddleware,
	limiter *middleware.RateLimiter, cors *middleware.CORSMiddleware,
	opts RouterOptions, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}

	var sink auditSink
	if fs, err := newFileAuditSink(opts.AuditLogPath); err != nil {
		log.WithError(err).WithField("path", opts.AuditLogPath).Warn("audit file sink disabled")
	} else if fs != nil {
		sink = fs
	}
	h := &handler{app: application, audit: newAuditLog(opts.AuditLogSize, sink), log: log}

	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware())
	if cors != nil {
		r.Use(cors.Handler)
	}
	if limiter != nil {
		r.Use(limiter.Handler)
	}
	if auth != nil {
		r.Use(auth.Handler)
	}

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Auth
	api.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)

	// Profile
	api.HandleFunc("/me", h.me).Methods(http.MethodGet)
	api.HandleFunc("/me", h.updateMe).Methods(http.MethodPatch)
	api.HandleFunc("/me/kyc", h.submitKYC).Methods(http.MethodPost)
	api.HandleFunc("/me/submissions", h.mySubmissions).Methods(http.MethodGet)
	api.HandleFunc("/me/tickets", h.myTickets).Methods(http.MethodGet)
	api.HandleFunc("/me/enrollments", h.myEnrollments).Methods(http.MethodGet)

	// Phone verification
	api.HandleFunc("/verify/phone/start", h.verifyStart).Methods(http.MethodPost)
	api.HandleFunc("/verify/phone/check", h.verifyCheck).Methods(http.MethodPost)

	// Tasks
	api.HandleFunc("/tasks", h.listTasks).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", h.getTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}/submissions", h.submitTask).Methods(http.MethodPost)

	// Wallet
	api.HandleFunc("/wallet/transactions", h.transactions).Methods(http.MethodGet)
	api.HandleFunc("/wallet/withdrawals", h.requestWithdrawal).Methods(http.MethodPost)
	api.HandleFunc("/wallet/withdrawals", h.myWithdrawals).Methods(http.MethodGet)

	// Referrals
	api.HandleFunc("/referrals/earnings", h.referralEarnings).Methods(http.MethodGet)
	api.HandleFunc("/referrals/leaderboard", h.referralLeaderboard).Methods(http.MethodGet)

	// Lotteries
	api.HandleFunc("/lotteries", h.listLotteries).Methods(http.MethodGet)
	api.HandleFunc("/lotteries/{id}", h.getLottery).Methods(http.MethodGet)
	api.HandleFunc("/lotteries/{id}/tickets", h.buyTicket).Methods(http.MethodPost)

	// Plans
	api.HandleFunc("/plans", h.listPlans).Methods(http.MethodGet)
	api.HandleFunc("/plans/{tier}/purchase", h.purchasePlan).Methods(http.MethodPost)

	// Market
	api.HandleFunc("/market/listings", h.listListings).Methods(http.MethodGet)
	api.HandleFunc("/market/listings", h.createListing).Methods(http.MethodPost)
	api.HandleFunc("/market/listings/{id}", h.getListing).Methods(http.MethodGet)
	api.HandleFunc("/market/listings/{id}", h.updateListing).Methods(http.MethodPatch)
	api.HandleFunc("/market/listings/{id}/status", h.setListingStatus).Methods(http.MethodPost)
	api.HandleFunc("/market/listings/{id}/buy", h.buyListing).Methods(http.MethodPost)
	api.HandleFunc("/market/purchases", h.myPurchases).Methods(http.MethodGet)
	api.HandleFunc("/market/purchases/{id}/deliver", h.deliverPurchase).Methods(http.MethodPost)
	api.HandleFunc("/market/purchases/{id}/confirm", h.confirmPurchase).Methods(http.MethodPost)
	api.HandleFunc("/market/purchases/{id}/dispute", h.openDispute).Methods(http.MethodPost)

	// Courses
	api.HandleFunc("/courses", h.listCourses).Methods(http.MethodGet)
	api.HandleFunc("/courses/{id}", h.getCourse).Methods(http.MethodGet)
	api.HandleFunc("/courses/{id}/enroll", h.enroll).Methods(http.MethodPost)
	api.HandleFunc("/courses/{id}/lessons/complete", h.completeLesson).Methods(http.MethodPost)

	// Feed
	api.HandleFunc("/feed", h.listPosts).Methods(http.MethodGet)
	api.HandleFunc("/feed", h.createPost).Methods(http.MethodPost)
	api.HandleFunc("/feed/{id}", h.deletePost).Methods(http.MethodDelete)
	api.HandleFunc("/feed/{id}/comments", h.listComments).Methods(http.MethodGet)
	api.HandleFunc("/feed/{id}/comments", h.addComment).Methods(http.MethodPost)
	api.HandleFunc("/feed/comments/{id}", h.deleteComment).Methods(http.MethodDelete)
	api.HandleFunc("/feed/{id}/like", h.likePost).Methods(http.MethodPost)
	api.HandleFunc("/feed/{id}/like", h.unlikePost).Methods(http.MethodDelete)

	// Notifications
	api.HandleFunc("/notifications", h.listNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/unread-count", h.unreadCount).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{id}/read", h.markRead).Methods(http.MethodPost)
	api.HandleFunc("/notifications/read-all", h.markAllRead).Methods(http.MethodPost)
	api.HandleFunc("/notifications/stream", h.notificationStream).Methods(http.MethodGet)

	// Uploads
	api.HandleFunc("/uploads", h.upload).Methods(http.MethodPost)
	api.HandleFunc("/uploads/multipart", h.initMultipart).Methods(http.MethodPost)
	api.HandleFunc("/uploads/multipart/{uploadID}/parts/{part}", h.uploadPart).Methods(http.MethodPut)
	api.HandleFunc("/uploads/multipart/{uploadID}/complete", h.completeMultipart).Methods(http.MethodPost)

	// Admin
	adm := api.PathPrefix("/admin").Subrouter()
	adm.Use(h.auditMiddleware)
	adm.HandleFunc("/users", h.adminOnly(h.adminListUsers)).Methods(http.MethodGet)
	adm.HandleFunc("/users/{id}/role", h.adminOnly(h.adminSetRole)).Methods(http.MethodPost)
	adm.HandleFunc("/users/{id}/status", h.adminOnly(h.adminSetStatus)).Methods(http.MethodPost)
	adm.HandleFunc("/users/{id}/kyc", h.adminOnly(h.adminReviewKYC)).Methods(http.MethodPost)
	adm.HandleFunc("/users/{id}/balance", h.adminOnly(h.adminAdjustBalance)).Methods(http.MethodPost)
	adm.HandleFunc("/tasks", h.moderatorOnly(h.adminCreateTask)).Methods(http.MethodPost)
	adm.HandleFunc("/tasks/{id}", h.moderatorOnly(h.adminUpdateTask)).Methods(http.MethodPatch)
	adm.HandleFunc("/tasks/{id}/status", h.moderatorOnly(h.adminSetTaskStatus)).Methods(http.MethodPost)
	adm.HandleFunc("/submissions", h.moderatorOnly(h.adminListSubmissions)).Methods(http.MethodGet)
	adm.HandleFunc("/submissions/{id}/review", h.moderatorOnly(h.adminReviewSubmission)).Methods(http.MethodPost)
	adm.HandleFunc("/withdrawals", h.adminOnly(h.adminListWithdrawals)).Methods(http.MethodGet)
	adm.HandleFunc("/withdrawals/{id}/approve", h.adminOnly(h.adminApproveWithdrawal)).Methods(http.MethodPost)
	adm.HandleFunc("/withdrawals/{id}/reject", h.adminOnly(h.adminRejectWithdrawal)).Methods(http.MethodPost)
	adm.HandleFunc("/withdrawals/{id}/paid", h.adminOnly(h.adminMarkPaid)).Methods(http.MethodPost)
	adm.HandleFunc("/referrals/levels", h.adminOnly(h.adminListCommissionLevels)).Methods(http.MethodGet)
	adm.HandleFunc("/referrals/levels", h.adminOnly(h.adminSetCommissionLevel)).Methods(http.MethodPut)
	adm.HandleFunc("/referrals/levels/{level}", h.adminOnly(h.adminDeleteCommissionLevel)).Methods(http.MethodDelete)
	adm.HandleFunc("/lotteries", h.adminOnly(h.adminCreateLottery)).Methods(http.MethodPost)
	adm.HandleFunc("/lotteries/{id}/draw", h.adminOnly(h.adminDrawLottery)).Methods(http.MethodPost)
	adm.HandleFunc("/lotteries/{id}/cancel", h.adminOnly(h.adminCancelLottery)).Methods(http.MethodPost)
	adm.HandleFunc("/disputes", h.adminOnly(h.adminListDisputes)).Methods(http.MethodGet)
	adm.HandleFunc("/disputes/{id}/resolve", h.adminOnly(h.adminResolveDispute)).Methods(http.MethodPost)
	adm.HandleFunc("/courses", h.moderatorOnly(h.adminCreateCourse)).Methods(http.MethodPost)
	adm.HandleFunc("/courses/{id}/status", h.moderatorOnly(h.adminSetCourseStatus)).Methods(http.MethodPost)
	adm.HandleFunc("/stats", h.adminOnly(h.adminStats)).Methods(http.MethodGet)
	adm.HandleFunc("/system", h.adminOnly(h.adminSystemStatus)).Methods(http.MethodGet)
	adm.HandleFunc("/audit", h.adminOnly(h.adminAuditLog)).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// adminOnly rejects callers without the admin role.
func (h *handler) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if middleware.Role(r.Context()) != "admin" {
			writeErrorMessage(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, r)
	}
}

// moderatorOnly admits moderators and admins.
func (h *handler) moderatorOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := middleware.Role(r.Context())
		if role != "admin" && role != "moderator" {
			writeErrorMessage(w, http.StatusForbidden, "moderator access required")
			return
		}
		next(w, r)
	}
}

func (h *handler) isModerator(r *http.Request) bool {
	role := middleware.Role(r.Context())
	return role == "admin" || role == "moderator"
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeError maps known service and storage errors to HTTP statuses and
// falls back to the caller-supplied status otherwise.
func writeError(w http.ResponseWriter, fallback int, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, userssvc.ErrInvalidCredentials):
		writeErrorMessage(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, userssvc.ErrSuspended),
		errors.Is(err, marketsvc.ErrNotSeller),
		errors.Is(err, marketsvc.ErrNotBuyer),
		errors.Is(err, feedsvc.ErrNotAuthor):
		writeErrorMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, userssvc.ErrEmailTaken),
		errors.Is(err, taskssvc.ErrAlreadySubmitted),
		errors.Is(err, marketsvc.ErrDisputeExists),
		errors.Is(err, coursesvc.ErrAlreadyEnrolled),
		errors.Is(err, feedsvc.ErrAlreadyLiked),
		errors.Is(err, storage.ErrDuplicate):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, taskssvc.ErrDailyLimit),
		errors.Is(err, lotterysvc.ErrUserTicketCap):
		writeErrorMessage(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, verify.ErrDisabled),
		errors.Is(err, uploads.ErrDisabled):
		writeErrorMessage(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, storage.ErrInsufficientBalance),
		errors.Is(err, walletsvc.ErrKYCRequired),
		errors.Is(err, walletsvc.ErrBelowMinimum),
		errors.Is(err, walletsvc.ErrNotPending),
		errors.Is(err, walletsvc.ErrNotApproved),
		errors.Is(err, walletsvc.ErrUnknownMethod),
		errors.Is(err, taskssvc.ErrTaskClosed),
		errors.Is(err, taskssvc.ErrNotPending),
		errors.Is(err, lotterysvc.ErrNotActive),
		errors.Is(err, lotterysvc.ErrSoldOut),
		errors.Is(err, lotterysvc.ErrNoTickets),
		errors.Is(err, marketsvc.ErrListingClosed),
		errors.Is(err, marketsvc.ErrOwnListing),
		errors.Is(err, marketsvc.ErrWrongState),
		errors.Is(err, marketsvc.ErrDisputeResolved),
		errors.Is(err, planssvc.ErrUnknownTier),
		errors.Is(err, planssvc.ErrNotUpgrade),
		errors.Is(err, coursesvc.ErrNotPublished),
		errors.Is(err, coursesvc.ErrNotEnrolled),
		errors.Is(err, coursesvc.ErrCourseComplete),
		errors.Is(err, userssvc.ErrKYCNotPending),
		errors.Is(err, verify.ErrBadPhone),
		errors.Is(err, verify.ErrCodeInvalid),
		errors.Is(err, uploads.ErrEmptyUpload),
		errors.Is(err, uploads.ErrTooLarge):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case fallback >= http.StatusInternalServerError:
		writeErrorMessage(w, fallback, "internal error")
	default:
		writeErrorMessage(w, fallback, err.Error())
	}
}

func queryLimit(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}
