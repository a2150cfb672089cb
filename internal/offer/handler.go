// AngelaMos | 2026
// handler.go

package offer

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

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/offers", func(r chi.Router) {
		r.Use(authenticator)

		r.With(middleware.RequireCustomer).Get("/customer", h.ListCustomer)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSeller)

			r.Get("/seller", h.ListSeller)
			r.Put("/accept", h.resolve(PermissionAccepted))
			r.Put("/reject", h.resolve(PermissionRejected))
			r.Delete("/", h.Delete)
		})
	})
}

func (h *Handler) ListSeller(w http.ResponseWriter, r *http.Request) {
	skip, limit := core.Pagination(r)

	offers, total, err := h.service.ListForSeller(
		r.Context(),
		middleware.GetUserID(r.Context()),
		skip, limit,
	)
	if err != nil {
		core.HandleError(w, err, "offer")
		return
	}

	core.Paginated(w, ToOfferResponseList(offers), skip, limit, total)
}

func (h *Handler) ListCustomer(w http.ResponseWriter, r *http.Request) {
	skip, limit := core.Pagination(r)

	offers, total, err := h.service.ListForCustomer(
		r.Context(),
		middleware.GetUserID(r.Context()),
		skip, limit,
	)
	if err != nil {
		core.HandleError(w, err, "offer")
		return
	}

	core.Paginated(w, ToOfferResponseList(offers), skip, limit, total)
}

func (h *Handler) resolve(decision Permission) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResolveOfferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			core.BadRequest(w, "invalid request body")
			return
		}

		if err := h.validator.Struct(req); err != nil {
			core.BadRequest(w, core.FormatValidationError(err))
			return
		}

		email, err := h.service.EmailOf(r.Context(), middleware.GetUserID(r.Context()))
		if err != nil {
			core.HandleError(w, err, "offer")
			return
		}

		rec, err := h.service.ResolveOffer(r.Context(), email, req.ItemName, req.SessionID, decision)
		if err != nil {
			core.HandleError(w, err, "offer")
			return
		}

		core.OKMessage(w, "offer "+string(decision), ToOfferResponse(rec))
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	email, err := h.service.EmailOf(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.HandleError(w, err, "offer")
		return
	}

	if _, err := h.service.DeleteOffer(r.Context(), email, req.ItemName, req.SessionID); err != nil {
		core.HandleError(w, err, "offer")
		return
	}

	core.OKMessage(w, "offer deleted", nil)
}
