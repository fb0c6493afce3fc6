package users

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-vms/gatehouse/internal/auth"
	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

// Handler manages account endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     auth.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers account routes. Callers mount this under an
// authenticated group.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireCapability(authz.CapViewUsers)).Get("/", h.list)
	r.With(h.guard.RequireCapability(authz.CapCreateUser)).Post("/", h.create)
	r.With(h.guard.RequireCapability(authz.CapLockUser)).Post("/lock", h.lock)
	r.With(h.guard.RequireCapability(authz.CapUnlockUser)).Post("/unlock", h.unlock)
	r.Get("/host_lookup", h.hostLookup)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list accounts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Users retrieved successfully", accounts)
}

type createRequest struct {
	EmployeeID string `json:"empid" validate:"required"`
	Name       string `json:"empname" validate:"required"`
	Mobile     string `json:"emp_mobile_no" validate:"required,len=10,numeric"`
	Password   string `json:"password" validate:"required,min=6"`
	Role       string `json:"user_role" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := auth.IdentityFromContext(r.Context())
	err := h.service.Create(r.Context(), CreateParams{
		EmployeeID: req.EmployeeID,
		Name:       req.Name,
		Mobile:     req.Mobile,
		Password:   req.Password,
		Role:       authz.Role(req.Role),
	}, actor.EmployeeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "User created successfully", nil)
}

type lifecycleRequest struct {
	EmployeeID     string `json:"empid" validate:"required"`
	MasterPassword string `json:"master_password"`
}

func (h *Handler) lock(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Lock, "User account locked successfully")
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.Unlock, "User account unlocked successfully")
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, empid, masterPassword, actor string) (*Account, error), message string) {
	var req lifecycleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := auth.IdentityFromContext(r.Context())
	if _, err := op(r.Context(), req.EmployeeID, req.MasterPassword, actor.EmployeeID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, message, nil)
}

func (h *Handler) hostLookup(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("number")
	match, err := h.service.LookupHostByMobile(r.Context(), number)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, match)
}
