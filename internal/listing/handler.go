// AngelaMos | 2026
// handler.go

package listing

import (
	"encoding/json"
	"net/http"
	"strings"

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

// RegisterRoutes mounts browse routes publicly and seller routes behind
// the authenticator. Paths are registered flat so other packages may add
// routes under /listings/{listingID}.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Get("/listings", h.Browse)
	r.Get("/listings/{listingID}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(authenticator)
		r.Use(middleware.RequireSeller)

		r.Post("/listings", h.Create)
		r.Put("/listings/{listingID}", h.Update)
		r.Delete("/listings/{listingID}", h.Delete)
		r.Get("/seller/listings", h.Mine)
	})
}

func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	skip, limit := core.Pagination(r)

	listings, total, err := h.service.Browse(r.Context(), ListParams{
		Skip:   skip,
		Limit:  limit,
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
	})
	if err != nil {
		core.HandleError(w, err, "listing")
		return
	}

	core.Paginated(w, ToListingResponseList(listings), skip, limit, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Get(
		r.Context(),
		chi.URLParam(r, "listingID"),
		middleware.GetUserID(r.Context()),
	)
	if err != nil {
		core.HandleError(w, err, "listing")
		return
	}

	core.OK(w, ToListingResponse(l))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	l, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		core.HandleError(w, err, "listing")
		return
	}

	core.Created(w, ToListingResponse(l))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	l, err := h.service.Update(
		r.Context(),
		chi.URLParam(r, "listingID"),
		middleware.GetUserID(r.Context()),
		req,
	)
	if err != nil {
		core.HandleError(w, err, "listing")
		return
	}

	core.OK(w, ToListingResponse(l))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(
		r.Context(),
		chi.URLParam(r, "listingID"),
		middleware.GetUserID(r.Context()),
	)
	if err != nil {
		core.HandleError(w, err, "listing")
		return
	}

	core.OKMessage(w, "listing deleted", nil)
}

func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	skip, limit := core.Pagination(r)

	listings, total, err := h.service.ListBySeller(
		r.Context(),
		middleware.GetUserID(r.Context()),
		ListParams{
			Skip:   skip,
			Limit:  limit,
			Search: strings.TrimSpace(r.URL.Query().Get("search")),
		},
	)
	if err != nil {
		core.HandleError(w, err, "listing")
		return
	}

	core.Paginated(w, ToListingResponseList(listings), skip, limit, total)
}
