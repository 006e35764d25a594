package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/earnhub/platform/internal/app/domain/course"
	"github.com/earnhub/platform/internal/app/domain/lottery"
	"github.com/earnhub/platform/internal/app/domain/market"
	"github.com/earnhub/platform/internal/app/domain/referral"
	"github.com/earnhub/platform/internal/app/domain/task"
	"github.com/earnhub/platform/internal/app/domain/user"
	"github.com/earnhub/platform/internal/middleware"
)

func (h *handler) adminListUsers(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	users, err := h.app.Users.List(r.Context(), offset, queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *handler) adminSetRole(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role string `json:"role"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := h.app.Users.SetRole(r.Context(), mux.Vars(r)["id"], user.Role(payload.Role))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) adminSetStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := h.app.Users.SetStatus(r.Context(), mux.Vars(r)["id"], user.Status(payload.Status))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) adminReviewKYC(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Approve bool `json:"approve"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := h.app.Users.ReviewKYC(r.Context(), mux.Vars(r)["id"], payload.Approve, middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) adminAdjustBalance(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Delta  int64  `json:"delta"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := h.app.Users.AdjustBalance(r.Context(), mux.Vars(r)["id"], payload.Delta,
		payload.Reason, middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) adminCreateTask(w http.ResponseWriter, r *http.Request) {
	var payload task.Task
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	payload.CreatedBy = middleware.UserID(r.Context())
	t, err := h.app.Tasks.Create(r.Context(), payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *handler) adminUpdateTask(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title          *string    `json:"title"`
		Description    *string    `json:"description"`
		Category       *string    `json:"category"`
		RewardPoints   *int64     `json:"reward_points"`
		RewardXP       *int64     `json:"reward_xp"`
		MaxSubmissions *int       `json:"max_submissions"`
		ExpiresAt      *time.Time `json:"expires_at"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t, err := h.app.Tasks.Update(r.Context(), mux.Vars(r)["id"], payload.Title, payload.Description,
		payload.Category, payload.RewardPoints, payload.RewardXP, payload.MaxSubmissions, payload.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) adminSetTaskStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t, err := h.app.Tasks.SetStatus(r.Context(), mux.Vars(r)["id"], task.Status(payload.Status))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) adminListSubmissions(w http.ResponseWriter, r *http.Request) {
	status := task.SubmissionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = task.SubmissionPending
	}
	subs, err := h.app.Tasks.ListSubmissions(r.Context(), status, queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *handler) adminReviewSubmission(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Approve bool   `json:"approve"`
		Reason  string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sub, err := h.app.Tasks.Review(r.Context(), mux.Vars(r)["id"], payload.Approve,
		middleware.UserID(r.Context()), payload.Reason)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *handler) adminListWithdrawals(w http.ResponseWriter, r *http.Request) {
	wds, err := h.app.Wallet.PendingWithdrawals(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, wds)
}

func (h *handler) adminApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	wd, err := h.app.Wallet.Approve(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.notifyWithdrawalByEmail(r, wd.UserID, true, wd.Amount)
	writeJSON(w, http.StatusOK, wd)
}

func (h *handler) adminRejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wd, err := h.app.Wallet.Reject(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()), payload.Reason)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.notifyWithdrawalByEmail(r, wd.UserID, false, wd.Amount)
	writeJSON(w, http.StatusOK, wd)
}

func (h *handler) adminMarkPaid(w http.ResponseWriter, r *http.Request) {
	wd, err := h.app.Wallet.MarkPaid(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, wd)
}

func (h *handler) notifyWithdrawalByEmail(r *http.Request, userID string, approved bool, amount int64) {
	if !h.app.Mailer.Enabled() {
		return
	}
	u, err := h.app.Users.Get(r.Context(), userID)
	if err != nil {
		return
	}
	if err := h.app.Mailer.SendWithdrawalDecision(u.Email, approved, amount); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("withdrawal email not sent")
	}
}

func (h *handler) adminListCommissionLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.app.Referrals.CommissionLevels(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

func (h *handler) adminSetCommissionLevel(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Level int    `json:"level"`
		Kind  string `json:"kind"`
		Value int64  `json:"value"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lvl, err := h.app.Referrals.SetCommissionLevel(r.Context(), payload.Level,
		referral.RuleKind(payload.Kind), payload.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, lvl)
}

func (h *handler) adminDeleteCommissionLevel(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(mux.Vars(r)["level"])
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "level must be a number")
		return
	}
	if err := h.app.Referrals.DeleteCommissionLevel(r.Context(), level); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) adminCreateLottery(w http.ResponseWriter, r *http.Request) {
	var payload lottery.Lottery
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	payload.CreatedBy = middleware.UserID(r.Context())
	l, err := h.app.Lottery.Create(r.Context(), payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *handler) adminDrawLottery(w http.ResponseWriter, r *http.Request) {
	l, err := h.app.Lottery.Draw(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *handler) adminCancelLottery(w http.ResponseWriter, r *http.Request) {
	l, err := h.app.Lottery.Cancel(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *handler) adminListDisputes(w http.ResponseWriter, r *http.Request) {
	status := market.DisputeStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = market.DisputeOpen
	}
	disputes, err := h.app.Market.ListDisputes(r.Context(), status, queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, disputes)
}

func (h *handler) adminResolveDispute(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Refund     bool   `json:"refund"`
		Resolution string `json:"resolution"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := h.app.Market.ResolveDispute(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()),
		payload.Refund, payload.Resolution)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *handler) adminCreateCourse(w http.ResponseWriter, r *http.Request) {
	var payload course.Course
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	payload.CreatedBy = middleware.UserID(r.Context())
	c, err := h.app.Courses.Create(r.Context(), payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) adminSetCourseStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.app.Courses.SetStatus(r.Context(), mux.Vars(r)["id"], course.Status(payload.Status))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) adminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.app.Panel.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) adminSystemStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Panel.SystemStatus(r.Context()))
}

func (h *handler) adminAuditLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.audit.list())
}
