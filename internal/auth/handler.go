package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	tokens    *TokenStore
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tokens *TokenStore) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		tokens:    tokens,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

// MountProtectedRoutes registers routes that require a live token.
func (h *Handler) MountProtectedRoutes(r chi.Router) {
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	EmployeeID string `json:"empid" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	UserInfo    authz.Identity `json:"user_info"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Employee ID and password are required")
		return
	}

	id, err := h.service.Authenticate(r.Context(), req.EmployeeID, req.Password)
	if err != nil {
		if errors.Is(err, httpx.ErrUnauthorized) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", loginDetail(err))
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	token, err := h.tokens.Issue(r.Context(), *id)
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	httpx.JSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		UserInfo:    *id,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.Revoke(r.Context(), bearerToken(r)); err != nil {
		h.logger.Warn("revoke token", slog.Any("error", err))
	}
	httpx.OK(w, "Logged out", nil)
}

// loginDetail strips the sentinel prefix so the client sees only the
// human-readable part.
func loginDetail(err error) string {
	switch {
	case errors.Is(err, ErrEmployeeNotFound):
		return "Employee ID not found"
	case errors.Is(err, ErrAccountUnusable):
		return "Account locked or inactive"
	case errors.Is(err, ErrAttemptsExhausted):
		return "Account locked due to failed attempts"
	case errors.Is(err, ErrIncorrectPassword):
		return "Incorrect password"
	default:
		return "Authentication failed"
	}
}
