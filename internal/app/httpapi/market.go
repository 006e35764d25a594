package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/earnhub/platform/internal/app/domain/market"
	"github.com/earnhub/platform/internal/middleware"
)

func (h *handler) listListings(w http.ResponseWriter, r *http.Request) {
	status := market.ListingStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = market.ListingActive
	}
	listings, err := h.app.Market.ListListings(r.Context(), status, queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *handler) createListing(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Price       int64  `json:"price"`
		Quantity    int    `json:"quantity"`
		ImageKey    string `json:"image_key"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	l, err := h.app.Market.CreateListing(r.Context(), middleware.UserID(r.Context()), market.Listing{
		Title:       payload.Title,
		Description: payload.Description,
		Category:    payload.Category,
		Price:       payload.Price,
		Quantity:    payload.Quantity,
		ImageKey:    payload.ImageKey,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *handler) getListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.app.Market.GetListing(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *handler) updateListing(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Category    *string `json:"category"`
		Price       *int64  `json:"price"`
		Quantity    *int    `json:"quantity"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	l, err := h.app.Market.UpdateListing(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()),
		payload.Title, payload.Description, payload.Category, payload.Price, payload.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *handler) setListingStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	l, err := h.app.Market.SetListingStatus(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()),
		market.ListingStatus(payload.Status), h.isModerator(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *handler) buyListing(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Market.Buy(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) myPurchases(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	var err error
	var purchases interface{}
	if r.URL.Query().Get("role") == "seller" {
		purchases, err = h.app.Market.SellerPurchases(r.Context(), userID, queryLimit(r))
	} else {
		purchases, err = h.app.Market.BuyerPurchases(r.Context(), userID, queryLimit(r))
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}

func (h *handler) deliverPurchase(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Market.MarkDelivered(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) confirmPurchase(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Market.Confirm(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) openDispute(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := h.app.Market.OpenDispute(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()), payload.Reason)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}
