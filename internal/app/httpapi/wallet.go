package httpapi

import (
	"net/http"
	"strconv"

	"github.com/earnhub/platform/internal/middleware"
)

func (h *handler) transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.app.Wallet.Transactions(r.Context(), middleware.UserID(r.Context()), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *handler) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount      int64  `json:"amount"`
		Method      string `json:"method"`
		Destination string `json:"destination"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wd, err := h.app.Wallet.RequestWithdrawal(r.Context(), middleware.UserID(r.Context()),
		payload.Amount, payload.Method, payload.Destination)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, wd)
}

func (h *handler) myWithdrawals(w http.ResponseWriter, r *http.Request) {
	wds, err := h.app.Wallet.UserWithdrawals(r.Context(), middleware.UserID(r.Context()), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, wds)
}

func (h *handler) referralEarnings(w http.ResponseWriter, r *http.Request) {
	earnings, err := h.app.Referrals.Earnings(r.Context(), middleware.UserID(r.Context()), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, earnings)
}

func (h *handler) referralLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	board, err := h.app.Referrals.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
