package http

import (
	"encoding/json"
	"net/http"

	"cashbook/internal/model"
	"cashbook/internal/service"
)

type Handler struct {
	svc service.AccountService
}

func NewHandler(svc service.AccountService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /accounts", h.OpenAccount)
	mux.HandleFunc("POST /accounts/{id}/deposits", h.DepositCash)
	mux.HandleFunc("POST /accounts/{id}/withdrawals", h.WithdrawCash)
	mux.HandleFunc("GET /accounts/{id}/balance", h.GetBalance)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// OpenAccount accepts an optional account_id; one is generated when absent.
func (h *Handler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req model.OpenAccountRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid_json")
			return
		}
	}
	id, err := h.svc.OpenAccount(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]string{"account_id": id, "status": "created"})
}

func (h *Handler) DepositCash(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCash(w, r)
	if !ok {
		return
	}
	if err := h.svc.DepositCash(r.Context(), req); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "deposited"})
}

func (h *Handler) WithdrawCash(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCash(w, r)
	if !ok {
		return
	}
	if err := h.svc.WithdrawCash(r.Context(), req); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "withdrawn"})
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.svc.GetBalance(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, bal)
}

func (h *Handler) decodeCash(w http.ResponseWriter, r *http.Request) (model.CashRequest, bool) {
	var body struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return model.CashRequest{}, false
	}
	return model.CashRequest{AccountID: r.PathValue("id"), Amount: body.Amount}, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	code := service.ErrorCode(err)
	h.respondJSON(w, statusFor(code), map[string]string{"error": err.Error(), "code": code})
}

func statusFor(code string) int {
	switch code {
	case service.CodeInvalidArgument, service.CodeOutOfRange:
		return http.StatusBadRequest
	case service.CodeInvalidOperation:
		return http.StatusUnprocessableEntity
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeAlreadyExists, service.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
