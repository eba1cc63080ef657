package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/todolist-app/server/internal/services"
	"github.com/todolist-app/server/internal/views"
	"github.com/todolist-app/server/types"
)

const (
	formFieldNewItem  = "newItem"
	formFieldCheckbox = "checkbox"

	listTitle = "Today"
)

type ListHandler struct {
	listService *services.ListService
	views       *views.Renderer
}

func NewListHandler(listService *services.ListService, renderer *views.Renderer) *ListHandler {
	return &ListHandler{
		listService: listService,
		views:       renderer,
	}
}

// ListRouter registers the list routes. Every route requires a signed-in user.
func ListRouter(r chi.Router, listService *services.ListService, renderer *views.Renderer) {
	handler := NewListHandler(listService, renderer)

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/lists/{username}", handler.Show)
		r.Post("/lists", handler.Add)
		r.Post("/delete", handler.Delete)
	})
}

// Show renders the user's list, seeding the default items on first visit.
func (h *ListHandler) Show(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	items, err := h.listService.GetOrSeed(r.Context(), user, chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, services.ErrForbidden) || errors.Is(err, services.ErrUnauthenticated) {
			redirectToLogin(w, r)
			return
		}
		serverError(w, r, h.views, err)
		return
	}

	h.renderList(w, r, http.StatusOK, user, items, "")
}

func (h *ListHandler) Add(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if _, err := h.listService.Add(r.Context(), user, r.PostFormValue(formFieldNewItem)); err != nil {
		var validationErr *services.ValidationError
		switch {
		case errors.As(err, &validationErr):
			h.renderWithError(w, r, user, validationErr.Message)
		case errors.Is(err, services.ErrUnauthenticated):
			redirectToLogin(w, r)
		default:
			serverError(w, r, h.views, err)
		}
		return
	}

	seeOther(w, r, listPath(user.Username))
}

func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.listService.Delete(r.Context(), user, r.PostFormValue(formFieldCheckbox))
	switch {
	case err == nil, errors.Is(err, services.ErrNotFound):
		// Already gone, e.g. a double submit.
		seeOther(w, r, listPath(user.Username))
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrUnauthenticated):
		redirectToLogin(w, r)
	default:
		serverError(w, r, h.views, err)
	}
}

// renderWithError re-renders the list after a rejected form submission.
func (h *ListHandler) renderWithError(w http.ResponseWriter, r *http.Request, user types.User, message string) {
	items, err := h.listService.GetOrSeed(r.Context(), user, user.Username)
	if err != nil {
		serverError(w, r, h.views, err)
		return
	}
	h.renderList(w, r, http.StatusBadRequest, user, items, message)
}

func (h *ListHandler) renderList(w http.ResponseWriter, r *http.Request, status int, user types.User, items []types.Item, message string) {
	render(w, r, h.views, status, views.PageList, listPage{
		ListTitle: listTitle,
		User:      user,
		Items:     items,
		Error:     message,
	})
}

type listPage struct {
	ListTitle string
	User      types.User
	Items     []types.Item
	Error     string
}
