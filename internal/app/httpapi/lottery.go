package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/earnhub/platform/internal/app/domain/lottery"
	"github.com/earnhub/platform/internal/middleware"
)

func (h *handler) listLotteries(w http.ResponseWriter, r *http.Request) {
	status := lottery.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = lottery.StatusActive
	}
	lotteries, err := h.app.Lottery.List(r.Context(), status, queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, lotteries)
}

func (h *handler) getLottery(w http.ResponseWriter, r *http.Request) {
	l, err := h.app.Lottery.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *handler) buyTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.app.Lottery.BuyTicket(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h *handler) myTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.app.Lottery.UserTickets(r.Context(), middleware.UserID(r.Context()), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *handler) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.app.Plans.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (h *handler) purchasePlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Plans.Purchase(r.Context(), middleware.UserID(r.Context()), mux.Vars(r)["tier"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
