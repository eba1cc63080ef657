package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/todolist-app/server/internal/services"
	"github.com/todolist-app/server/types"
)

const sessionCookieName = "todo_session"

// SessionManager carries the session id in a signed cookie and resolves it to
// a user on every request.
type SessionManager struct {
	auth   *services.AuthService
	secret []byte
	secure bool
}

// NewSessionManager constructs a SessionManager. secure sets the cookie's
// Secure flag and should be on in production.
func NewSessionManager(auth *services.AuthService, secret string, secure bool) *SessionManager {
	return &SessionManager{
		auth:   auth,
		secret: []byte(secret),
		secure: secure,
	}
}

// Middleware attaches the authenticated user to the request context when the
// cookie is valid. Requests without a valid session pass through anonymously.
func (m *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := m.sessionID(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.auth.Authenticate(r.Context(), sessionID)
		if err != nil {
			// Keep the cookie when the store is unavailable; the session may
			// still be valid on the next request.
			if errors.Is(err, services.ErrUnauthenticated) {
				m.Clear(w)
			} else {
				logError(r, err)
			}
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RequireUser redirects anonymous requests to the login page.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userFromContext(r.Context()); !ok {
			redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Issue writes the cookie for session.
func (m *SessionManager) Issue(w http.ResponseWriter, session types.Session) error {
	token, err := issueToken(session, m.secret)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionID extracts the session id from a verified cookie.
func (m *SessionManager) sessionID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", err
	}
	return parseTokenID(cookie.Value, m.secret)
}

func issueToken(session types.Session, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        session.ID,
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseTokenID(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.ID) == "" {
		return "", errors.New("missing session id")
	}
	return claims.ID, nil
}
