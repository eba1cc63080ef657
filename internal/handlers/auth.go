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
	formFieldUsername        = "username"
	formFieldPassword        = "password"
	formFieldNewUsername     = "newUsername"
	formFieldNewPassword     = "newPassword"
	formFieldConfirmPassword = "confirmPassword"

	invalidCredentialsMessage = "Invalid username or password."
)

// AuthHandler serves the login, registration, logout and profile pages.
type AuthHandler struct {
	authService *services.AuthService
	sessions    *SessionManager
	views       *views.Renderer
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, sessions *SessionManager, renderer *views.Renderer) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
		views:       renderer,
	}
}

// AuthRouter registers account routes on the given router. The router must
// already run SessionManager.Middleware.
func AuthRouter(r chi.Router, authService *services.AuthService, sessions *SessionManager, renderer *views.Renderer) {
	handler := NewAuthHandler(authService, sessions, renderer)

	r.Get("/", handler.Home)
	r.Get("/login", handler.LoginPage)
	r.Post("/login", handler.Login)
	r.Get("/register", handler.RegisterPage)
	r.Post("/register", handler.Register)
	r.Get("/logout", handler.Logout)
	r.Route("/profile/{username}", func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/", handler.Profile)
		r.Post("/", handler.UpdateProfile)
	})
}

// Home sends signed-in users to their list and everyone else to the login page.
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	if user, ok := userFromContext(r.Context()); ok {
		http.Redirect(w, r, listPath(user.Username), http.StatusFound)
		return
	}
	redirectToLogin(w, r)
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, h.views, http.StatusOK, views.PageLogin, credentialsPage{})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		render(w, r, h.views, http.StatusBadRequest, views.PageLogin, credentialsPage{Error: "Invalid request."})
		return
	}
	username := r.PostFormValue(formFieldUsername)

	session, user, err := h.authService.Login(r.Context(), username, r.PostFormValue(formFieldPassword))
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			render(w, r, h.views, http.StatusUnauthorized, views.PageLogin, credentialsPage{
				Username: username,
				Error:    invalidCredentialsMessage,
			})
			return
		}
		serverError(w, r, h.views, err)
		return
	}

	// Drop whatever session the browser held before.
	if previous, err := h.sessions.sessionID(r); err == nil {
		if err := h.authService.Logout(r.Context(), previous); err != nil {
			logError(r, err)
		}
	}

	if err := h.sessions.Issue(w, session); err != nil {
		serverError(w, r, h.views, err)
		return
	}
	seeOther(w, r, listPath(user.Username))
}

func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, h.views, http.StatusOK, views.PageRegister, credentialsPage{})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		render(w, r, h.views, http.StatusBadRequest, views.PageRegister, credentialsPage{Error: "Invalid request."})
		return
	}
	username := r.PostFormValue(formFieldUsername)

	if _, err := h.authService.Register(r.Context(), username, r.PostFormValue(formFieldPassword)); err != nil {
		var validationErr *services.ValidationError
		if errors.As(err, &validationErr) {
			status := http.StatusBadRequest
			if errors.Is(err, services.ErrUsernameTaken) {
				status = http.StatusConflict
			}
			render(w, r, h.views, status, views.PageRegister, credentialsPage{
				Username: username,
				Error:    validationErr.Message,
			})
			return
		}
		serverError(w, r, h.views, err)
		return
	}

	seeOther(w, r, "/login")
}

// Logout ends the session if there is one; calling it repeatedly is harmless.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, err := h.sessions.sessionID(r); err == nil {
		if err := h.authService.Logout(r.Context(), sessionID); err != nil {
			logError(r, err)
		}
	}
	h.sessions.Clear(w)
	redirectToLogin(w, r)
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	if chi.URLParam(r, "username") != user.Username {
		redirectToLogin(w, r)
		return
	}
	render(w, r, h.views, http.StatusOK, views.PageProfile, profilePage{User: user})
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		render(w, r, h.views, http.StatusBadRequest, views.PageProfile, profilePage{User: user, Error: "Invalid request."})
		return
	}

	updated, err := h.authService.UpdateProfile(r.Context(), user, chi.URLParam(r, "username"), services.ProfileUpdate{
		NewUsername:     r.PostFormValue(formFieldNewUsername),
		NewPassword:     r.PostFormValue(formFieldNewPassword),
		ConfirmPassword: r.PostFormValue(formFieldConfirmPassword),
	})
	if err != nil {
		var validationErr *services.ValidationError
		switch {
		case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrUnauthenticated):
			redirectToLogin(w, r)
		case errors.As(err, &validationErr):
			render(w, r, h.views, http.StatusBadRequest, views.PageProfile, profilePage{User: user, Error: validationErr.Message})
		default:
			serverError(w, r, h.views, err)
		}
		return
	}

	seeOther(w, r, profilePath(updated.Username))
}

type credentialsPage struct {
	Username string
	Error    string
}

type profilePage struct {
	User  types.User
	Error string
}
