package handlers

import (
	"context"
	"log"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/todolist-app/server/internal/views"
	"github.com/todolist-app/server/types"
)

type contextKey string

const contextUserKey contextKey = "user"

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

// userFromContext returns the authenticated user bound to the request, if any.
func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok || user.ID == 0 {
		return types.User{}, false
	}
	return user, true
}

func listPath(username string) string {
	return "/lists/" + url.PathEscape(username)
}

func profilePath(username string) string {
	return "/profile/" + url.PathEscape(username)
}

// seeOther redirects after a form post so a reload does not resubmit it.
func seeOther(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusFound)
}

func render(w http.ResponseWriter, r *http.Request, renderer *views.Renderer, status int, page string, data any) {
	if err := renderer.Render(w, status, page, data); err != nil {
		logError(r, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// serverError logs err and answers with a generic failure page.
func serverError(w http.ResponseWriter, r *http.Request, renderer *views.Renderer, err error) {
	logError(r, err)
	render(w, r, renderer, http.StatusInternalServerError, views.PageError, errorPage{
		Message: "We could not complete your request. Please try again.",
	})
}

func logError(r *http.Request, err error) {
	log.Printf("[%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type errorPage struct {
	Message string
}
