// AngelaMos | 2026
// handler.go

package subscription

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/media-rental/internal/core"
	"github.com/carterperez-dev/templates/media-rental/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts the customer and seller views. Renew addresses a
// subscription by its local id; cancel and status by the provider id.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/subscriptions", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(middleware.RequireCustomer)

		r.Get("/", h.ListMine)
		r.Put("/{subscriptionID}/renew", h.Renew)
		r.Put("/{subscriptionID}/cancel", h.Cancel)
		r.Get("/{subscriptionID}/status", h.Status)
	})

	r.With(authenticator, middleware.RequireSeller).
		Get("/seller/subscriptions", h.ListSold)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, OwnerCustomer)
}

func (h *Handler) ListSold(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, OwnerSeller)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, role OwnerRole) {
	skip, limit := core.Pagination(r)

	views, total, err := h.service.List(
		r.Context(),
		middleware.GetUserID(r.Context()),
		role,
		skip, limit,
	)
	if err != nil {
		core.HandleError(w, err, "subscription")
		return
	}

	core.Paginated(w, ToSubscriptionResponseList(views), skip, limit, total)
}

func (h *Handler) Renew(w http.ResponseWriter, r *http.Request) {
	var req RenewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	sub, err := h.service.Renew(
		r.Context(),
		chi.URLParam(r, "subscriptionID"),
		middleware.GetUserID(r.Context()),
		req.Unit,
	)
	if err != nil {
		core.HandleError(w, err, "subscription")
		return
	}

	core.OKMessage(w, "subscription renewed", ToSubscriptionResponse(View{Subscription: *sub}))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	confirmed, remote, err := h.service.CancelOrReactivate(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "subscriptionID"),
		*req.IsCancel,
	)
	if err != nil {
		core.HandleError(w, err, "subscription")
		return
	}

	core.OK(w, CancelResponse{
		Confirmed:         confirmed,
		CancelAtPeriodEnd: remote.CancelAtPeriodEnd,
	})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	remote, err := h.service.Status(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "subscriptionID"),
	)
	if err != nil {
		core.HandleError(w, err, "subscription")
		return
	}

	core.OK(w, remote)
}
