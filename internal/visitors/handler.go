package visitors

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-vms/gatehouse/internal/auth"
	"github.com/gatehouse-vms/gatehouse/internal/authz"
	"github.com/gatehouse-vms/gatehouse/internal/platform/httpx"
)

// Handler manages visitor entry endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	reporter  *Reporter
	guard     auth.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, reporter *Reporter, guard auth.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		reporter:  reporter,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountRoutes registers visitor routes. Callers mount this under an
// authenticated group. The list endpoints are open to any authenticated
// caller; the service narrows results to the caller's own hosted visitors
// unless their role can see everything.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireCapability(authz.CapCreateVisitorEntry)).Post("/", h.submit)
	r.Get("/", h.list)
	r.Get("/pending", h.listPending)
	r.With(h.guard.RequireCapability(authz.CapApproveVisitor)).Post("/approve", h.decide)
	r.With(h.guard.RequireCapability(authz.CapCheckoutVisitor)).Get("/active", h.listActive)
	r.With(h.guard.RequireCapability(authz.CapCheckoutVisitor)).Post("/{card_no}/checkout", h.checkout)
}

// MountReportRoutes registers the report endpoints.
func (h *Handler) MountReportRoutes(r chi.Router) {
	r.Use(h.guard.RequireCapability(authz.CapViewReports))
	r.Get("/daily", h.reportDaily)
	r.Get("/summary", h.reportSummary)
	r.Get("/frequent", h.reportFrequent)
}

type submitRequest struct {
	Name           string          `json:"name" validate:"required"`
	Mobile         string          `json:"mobile" validate:"required,len=10,numeric"`
	Email          string          `json:"email"`
	IDType         string          `json:"id_type" validate:"required"`
	IDNumber       string          `json:"id_number" validate:"required"`
	Representing   string          `json:"representing"`
	Purpose        string          `json:"purpose" validate:"required"`
	Category       string          `json:"visitor_category" validate:"required"`
	HostMobile     string          `json:"emp_mobile_no" validate:"required,len=10,numeric"`
	FellowCount    int             `json:"fellow_visitors" validate:"min=0"`
	FellowVisitors []FellowVisitor `json:"fellow_visitors_details"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := auth.IdentityFromContext(r.Context())
	entry, err := h.service.Submit(r.Context(), SubmitParams{
		Name:           req.Name,
		Mobile:         req.Mobile,
		Email:          req.Email,
		IDType:         req.IDType,
		IDNumber:       req.IDNumber,
		Representing:   req.Representing,
		Purpose:        req.Purpose,
		Category:       req.Category,
		HostMobile:     req.HostMobile,
		FellowCount:    req.FellowCount,
		FellowVisitors: req.FellowVisitors,
	}, actor.EmployeeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Visitor entry created successfully", entry)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list visitors", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Visitors retrieved successfully", emptyIfNil(entries))
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListPending(r.Context(), auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list pending visitors", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Pending approvals retrieved successfully", emptyIfNil(entries))
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListActive(r.Context())
	if err != nil {
		h.logger.Error("list active visitors", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Active visitors retrieved successfully", emptyIfNil(entries))
}

type decideRequest struct {
	CardNo          string `json:"card_no" validate:"required"`
	Action          string `json:"action" validate:"required"`
	RejectionReason string `json:"rejection_reason"`
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "Malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := auth.IdentityFromContext(r.Context())
	entry, err := h.service.Decide(r.Context(), req.CardNo, Approval(req.Action), req.RejectionReason, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	message := "Visitor approved successfully"
	if entry.Approval == ApprovalRejected {
		message = "Visitor rejected successfully"
	}
	httpx.OK(w, message, entry)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	cardNo := chi.URLParam(r, "card_no")
	actor := auth.IdentityFromContext(r.Context())
	entry, err := h.service.Checkout(r.Context(), cardNo, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Visitor checked out successfully", entry)
}

func (h *Handler) reportDaily(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("date")
	report, err := h.reporter.Daily(r.Context(), day)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Report generated successfully", report)
}

func (h *Handler) reportSummary(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.Summary(r.Context())
	if err != nil {
		h.logger.Error("summary report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Report generated successfully", report)
}

func (h *Handler) reportFrequent(w http.ResponseWriter, r *http.Request) {
	report, err := h.reporter.Frequent(r.Context())
	if err != nil {
		h.logger.Error("frequent visitor report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "Report generated successfully", report)
}

func emptyIfNil(entries []Entry) []Entry {
	if entries == nil {
		return []Entry{}
	}
	return entries
}
