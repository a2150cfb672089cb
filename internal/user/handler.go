// AngelaMos | 2026
// handler.go

package user

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

func (h *Handler) RegisterRoutes(r chi.Router, authenticator func(http.Handler) http.Handler) {
	r.Route("/users/me", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.Me)
		r.Put("/", h.UpdateMe)
		r.Delete("/", h.DeleteMe)
	})
}

// RegisterAdminRoutes mounts account lookup and removal for operators.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(authenticator, adminOnly)

		r.Get("/", h.List)
		r.Get("/{userID}", h.Get)
		r.Delete("/{userID}", h.Remove)
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetUserID(r.Context())
	if id == "" {
		core.HandleError(w, core.ErrUnauthorized, "user")
		return
	}
	u, err := h.service.GetUser(r.Context(), id)
	h.respond(w, u, err)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}
	u, err := h.service.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), req)
	h.respond(w, u, err)
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CloseAccount(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		core.HandleError(w, err, "user")
		return
	}
	core.NoContent(w)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	skip, limit := core.Pagination(r)
	q := r.URL.Query()

	users, total, err := h.service.ListUsers(r.Context(), ListUsersParams{
		Skip:   skip,
		Limit:  limit,
		Search: q.Get("search"),
		Type:   q.Get("type"),
	})
	if err != nil {
		core.HandleError(w, err, "user")
		return
	}

	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = ToUserResponse(&users[i])
	}
	core.Paginated(w, out, skip, limit, total)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUser(r.Context(), chi.URLParam(r, "userID"))
	h.respond(w, u, err)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveUser(r.Context(), chi.URLParam(r, "userID")); err != nil {
		core.HandleError(w, err, "user")
		return
	}
	core.NoContent(w)
}

func (h *Handler) respond(w http.ResponseWriter, u *User, err error) {
	if err != nil {
		core.HandleError(w, err, "user")
		return
	}
	core.OK(w, ToUserResponse(u))
}
