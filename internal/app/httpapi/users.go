package httpapi

import (
	"net/http"

	"github.com/earnhub/platform/internal/middleware"
)

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email        string `json:"email"`
		Password     string `json:"password"`
		Name         string `json:"name"`
		ReferralCode string `json:"referral_code"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := h.app.Users.Register(r.Context(), payload.Email, payload.Password, payload.Name, payload.ReferralCode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, token, err := h.app.Users.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  u,
	})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.Get(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	referrals, err := h.app.Users.CountReferrals(r.Context(), u.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":      u,
		"level":     u.Level(),
		"referrals": referrals,
	})
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name  *string `json:"name"`
		Phone *string `json:"phone"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := h.app.Users.UpdateProfile(r.Context(), middleware.UserID(r.Context()), payload.Name, payload.Phone)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) submitKYC(w http.ResponseWriter, r *http.Request) {
	u, err := h.app.Users.SubmitKYC(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) verifyStart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Phone string `json:"phone"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := h.app.Verify.Start(r.Context(), payload.Phone)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"verification_id": id})
}

func (h *handler) verifyCheck(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		VerificationID string `json:"verification_id"`
		Phone          string `json:"phone"`
		Code           string `json:"code"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err := h.app.Verify.Check(r.Context(), middleware.UserID(r.Context()),
		payload.VerificationID, payload.Phone, payload.Code)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}
