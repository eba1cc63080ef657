package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/todolist-app/server/internal/store"
	"github.com/todolist-app/server/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultSessionTTL = 24 * time.Hour
	maxUsernameLength = 64
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
}

// SessionRepository defines persistence operations for login sessions.
type SessionRepository interface {
	Create(ctx context.Context, userID int, ttl time.Duration) (types.Session, error)
	Get(ctx context.Context, id string) (types.Session, error)
	Delete(ctx context.Context, id string) error
}

// ProfileUpdate carries the optional changes submitted from the profile form.
// Blank fields are left unchanged.
type ProfileUpdate struct {
	NewUsername     string
	NewPassword     string
	ConfirmPassword string
}

// AuthService encapsulates registration, login and session use-cases.
type AuthService struct {
	users      UserRepository
	sessions   SessionRepository
	events     *Events
	sessionTTL time.Duration
	hashCost   int
	now        func() time.Time
}

func NewAuthService(users UserRepository, sessions SessionRepository, events *Events, sessionTTL time.Duration) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &AuthService{
		users:      users,
		sessions:   sessions,
		events:     events,
		sessionTTL: sessionTTL,
		hashCost:   bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// Register creates an account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, invalid("Username and password are required.")
	}
	if err := validateUsername(username); err != nil {
		return types.User{}, err
	}

	hashed, err := s.hashPassword(password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		Username:     username,
		Role:         types.DefaultRole,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrUsernameTaken
		}
		return types.User{}, storeError("create user", err)
	}

	s.events.emit(ctx, types.Event{Type: types.EventUserRegistered, Username: user.Username})
	return user, nil
}

// Login verifies credentials and opens a new session. An unknown username and
// a wrong password both yield ErrInvalidCredentials after a bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, username, password string) (types.Session, types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		compareDummy(password)
		return types.Session{}, types.User{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			compareDummy(password)
			return types.Session{}, types.User{}, ErrInvalidCredentials
		}
		return types.Session{}, types.User{}, storeError("load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.Session{}, types.User{}, ErrInvalidCredentials
	}

	session, err := s.sessions.Create(ctx, user.ID, s.sessionTTL)
	if err != nil {
		return types.Session{}, types.User{}, storeError("create session", err)
	}
	return session, user, nil
}

// Logout destroys the session. Unknown or empty ids are ignored.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return storeError("delete session", err)
	}
	return nil
}

// Authenticate resolves a session id to the user it is bound to.
func (s *AuthService) Authenticate(ctx context.Context, sessionID string) (types.User, error) {
	if strings.TrimSpace(sessionID) == "" {
		return types.User{}, ErrUnauthenticated
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthenticated
		}
		return types.User{}, storeError("load session", err)
	}

	if session.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, session.ID); err != nil {
			return types.User{}, storeError("delete session", err)
		}
		return types.User{}, ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthenticated
		}
		return types.User{}, storeError("load user", err)
	}
	return user, nil
}

// UpdateProfile changes the actor's username and/or password. target must be
// the actor's own username.
func (s *AuthService) UpdateProfile(ctx context.Context, actor types.User, target string, update ProfileUpdate) (types.User, error) {
	if actor.ID == 0 {
		return types.User{}, ErrUnauthenticated
	}
	if actor.Username != target {
		return types.User{}, ErrForbidden
	}
	if update.NewPassword != update.ConfirmPassword {
		return types.User{}, ErrPasswordMismatch
	}

	user := actor
	changed := false

	newUsername := strings.TrimSpace(update.NewUsername)
	if newUsername != "" && newUsername != user.Username {
		if err := validateUsername(newUsername); err != nil {
			return types.User{}, err
		}
		user.Username = newUsername
		changed = true
	}

	if update.NewPassword != "" {
		hashed, err := s.hashPassword(update.NewPassword)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = hashed
		changed = true
	}

	if !changed {
		return actor, nil
	}

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return types.User{}, ErrUsernameTaken
		case errors.Is(err, store.ErrNotFound):
			return types.User{}, ErrNotFound
		}
		return types.User{}, storeError("update user", err)
	}

	if updated.Username != actor.Username {
		s.events.emit(ctx, types.Event{
			Type:        types.EventUserRenamed,
			Username:    updated.Username,
			OldUsername: actor.Username,
		})
	}
	return updated, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", invalid("Password must be at most 72 bytes.")
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Usernames appear as a URL path segment, so slashes and control characters
// are rejected.
func validateUsername(username string) error {
	if len(username) > maxUsernameLength {
		return invalid(fmt.Sprintf("Username must be at most %d characters.", maxUsernameLength))
	}
	for _, r := range username {
		if r == '/' || r == '\\' || unicode.IsControl(r) || unicode.IsSpace(r) {
			return invalid("Username may not contain spaces or slashes.")
		}
	}
	return nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// compareDummy spends the same bcrypt work as a real comparison so that an
// unknown username is not distinguishable by response time.
func compareDummy(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
