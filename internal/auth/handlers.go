package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/logger"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type SignupRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	RepeatPassword string `json:"repeatPassword"`
	Name           string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserInfo struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Handlers struct {
	service *Service
	cookies *CookieWriter
}

func NewHandlers(service *Service, cookies *CookieWriter) *Handlers {
	return &Handlers{service: service, cookies: cookies}
}

// Signup creates an account. It does not set session cookies; the
// client is expected to log in afterwards.
func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) error {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if err := validateSignupRequest(&req); err != nil {
		return apperrors.ValidationError(err.Error())
	}

	user, err := h.service.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, db.ErrEmailExists) {
			return apperrors.EmailExists()
		}
		return apperrors.InternalError("failed to create user").WithCause(err)
	}

	apperrors.WriteJSON(w, logger.GetRequestID(r.Context()), http.StatusCreated, userInfo(user))
	return nil
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) error {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return apperrors.ValidationError("email and password are required")
	}

	user, pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return apperrors.InvalidCredentials()
		case errors.Is(err, ErrUserNotFound):
			return apperrors.UserNotFound()
		default:
			return apperrors.InternalError("login failed").WithCause(err)
		}
	}

	h.cookies.SetSession(w, pair)
	apperrors.WriteJSON(w, logger.GetRequestID(r.Context()), http.StatusOK, userInfo(user))
	return nil
}

// Refresh rotates the session from the refresh cookie. Any failure
// clears the access cookie so a stale access token cannot outlive a
// dead refresh token.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		h.cookies.ClearAccess(w)
		return apperrors.InvalidToken("missing refresh token")
	}

	user, pair, err := h.service.Refresh(r.Context(), cookie.Value)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			h.cookies.ClearAccess(w)
			return apperrors.TokenExpired()
		case errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrTokenInvalid):
			h.cookies.ClearAccess(w)
			return apperrors.InvalidToken("invalid refresh token")
		default:
			return apperrors.InternalError("token refresh failed").WithCause(err)
		}
	}

	h.cookies.SetSession(w, pair)
	apperrors.WriteJSON(w, logger.GetRequestID(r.Context()), http.StatusOK, userInfo(user))
	return nil
}

// Signout clears both session cookies. Idempotent: succeeds whether or
// not a session exists.
func (h *Handlers) Signout(w http.ResponseWriter, r *http.Request) error {
	h.cookies.ClearSession(w)
	apperrors.WriteJSON(w, logger.GetRequestID(r.Context()), http.StatusOK, MessageResponse{Message: "signed out"})
	return nil
}

// Me returns the authenticated user's profile.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) error {
	identity := IdentityFromContext(r.Context())
	if identity == nil {
		return apperrors.Unauthorized("not authenticated")
	}

	user, err := h.service.UserByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperrors.UserNotFound()
		}
		return apperrors.InternalError("failed to load user").WithCause(err)
	}

	apperrors.WriteJSON(w, logger.GetRequestID(r.Context()), http.StatusOK, userInfo(user))
	return nil
}

func userInfo(user *db.User) *UserInfo {
	return &UserInfo{
		ID:        user.ID.String(),
		Email:     user.Email,
		Name:      user.Name,
		Avatar:    user.Avatar,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

func validateSignupRequest(req *SignupRequest) error {
	if req.Email == "" {
		return errors.New("email is required")
	}
	if !emailRegex.MatchString(req.Email) {
		return errors.New("invalid email format")
	}
	if req.Password == "" {
		return errors.New("password is required")
	}
	if len(req.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if req.Password != req.RepeatPassword {
		return errors.New("passwords do not match")
	}
	if req.Name == "" {
		return errors.New("name is required")
	}
	if len(req.Name) > 200 {
		return errors.New("name must be at most 200 characters")
	}
	return nil
}
