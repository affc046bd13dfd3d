package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/petlink/petlink/internal/auth"
	"github.com/petlink/petlink/internal/handler/dto"
	"github.com/petlink/petlink/internal/middleware"
	"github.com/petlink/petlink/internal/model"
	"github.com/petlink/petlink/internal/service"
)

// Accounts is the account use-case surface; satisfied by
// *service.AccountService.
type Accounts interface {
	Register(ctx context.Context, input service.RegisterInput) (*model.Account, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Profile(ctx context.Context, id string) (*model.Account, error)
	UpdateProfile(ctx context.Context, id string, input service.UpdateProfileInput) (*model.Account, error)
}

// AccountHandler handles sign-up, sign-in and the caller's profile.
type AccountHandler struct {
	svc    Accounts
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc Accounts, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		svc:    svc,
		logger: logger.With("component", "handler.account"),
	}
}

// Register handles POST /api/v1/auth/register.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := middleware.ValidatePhone(req.Phone); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	account, err := h.svc.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToAccountResponse(account))
}

// Login handles POST /api/v1/auth/login.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LoginResponse{
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresAt: result.ExpiresAt,
		Account:   dto.ToAccountResponse(result.Account),
	})
}

// Me handles GET /api/v1/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.Profile(r.Context(), auth.AccountIDFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToAccountResponse(account))
}

// UpdateMe handles PATCH /api/v1/me.
func (h *AccountHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.Phone != nil {
		if err := middleware.ValidatePhone(*req.Phone); err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
	}

	account, err := h.svc.UpdateProfile(r.Context(), auth.AccountIDFromContext(r.Context()), service.UpdateProfileInput{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToAccountResponse(account))
}
