package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	appMiddleware "github.com/thebigby10/sugarvoice-backend/app/middleware"
	"github.com/thebigby10/sugarvoice-backend/internal/api"
	"github.com/thebigby10/sugarvoice-backend/internal/types"
)

const maxFormBytes = 1 << 20

type AuthHandler struct {
	authService AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		authService: authService,
	}
}

// ProtectedServiceResponse is returned by GET /protected-service.
type ProtectedServiceResponse struct {
	Message     string             `json:"message" example:"Hello Jane Doe, this is a protected service!"`
	UserDetails ProtectedUserBrief `json:"user_details"`
}

type ProtectedUserBrief struct {
	Email        string `json:"email" example:"jane@example.com"`
	DiabetesType int    `json:"diabetes_type" example:"1"`
}

// Register godoc
// @Summary      Register
// @Description  Creates a new account. Emails are case-insensitive.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        user body types.RegisterRequest true "New user"
// @Success      200 {object} types.IdentityView
// @Failure      400 {object} types.Response "Email already registered or invalid input"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Register")
	defer span.End()

	l := h.logger.With(slog.String("HandlerImpl", "Register"))

	var req types.RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.authService.Register(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, "Registration failed")
		h.writeError(w, r, l, err)
		return
	}

	span.SetStatus(codes.Ok, "User registered")
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

// Login godoc
// @Summary      Login
// @Description  Exchanges credentials for a bearer token. Accepts JSON {email, password} or an OAuth2 password form (username, password).
// @Tags         Auth
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        credentials body types.LoginRequest false "Credentials"
// @Success      200 {object} types.TokenResponse
// @Failure      400 {object} types.Response "Invalid request"
// @Failure      401 {object} types.Response "Incorrect email or password"
// @Failure      429 {object} types.Response "Too many failed attempts"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Router       /auth/token [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Login")
	defer span.End()

	l := h.logger.With(slog.String("HandlerImpl", "Login"))

	req, err := readLoginRequest(w, r)
	if err != nil {
		l.WarnContext(ctx, "Failed to read credentials", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx = appMiddleware.WithClientIP(ctx, appMiddleware.ClientIP(r))
	token, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		span.SetStatus(codes.Error, "Login failed")
		h.writeError(w, r, l, err)
		return
	}

	span.SetStatus(codes.Ok, "Token issued")
	api.WriteJSONResponse(w, r, http.StatusOK, token)
}

func readLoginRequest(w http.ResponseWriter, r *http.Request) (types.LoginRequest, error) {
	var req types.LoginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("invalid form body: %w", err)
		}
		req.Email = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return req, fmt.Errorf("invalid form body: %w", err)
		}
		req.Email = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	default:
		if err := api.DecodeJSONBody(w, r, &req); err != nil {
			return req, err
		}
	}

	if req.Email == "" || req.Password == "" {
		return req, errors.New("email and password are required")
	}
	return req, nil
}

// Me godoc
// @Summary      Current user
// @Description  Returns the profile of the authenticated user.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} types.IdentityView
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := appMiddleware.IdentityFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, r, "Authentication required")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, identity.View())
}

// UpdateMe godoc
// @Summary      Update current user
// @Description  Applies the supplied fields to the authenticated user's profile. Absent fields are unchanged; null is rejected.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        profile body types.IdentityPatch true "Fields to change"
// @Success      200 {object} types.IdentityView
// @Failure      400 {object} types.Response "Invalid input or email already registered"
// @Failure      401 {object} types.Response "Unauthorized"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Security     BearerAuth
// @Router       /auth/me [put]
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "UpdateMe")
	defer span.End()

	l := h.logger.With(slog.String("HandlerImpl", "UpdateMe"))

	identity, ok := appMiddleware.IdentityFromContext(ctx)
	if !ok {
		api.Unauthorized(w, r, "Authentication required")
		return
	}

	var patch types.IdentityPatch
	if err := api.DecodeJSONBody(w, r, &patch); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		span.SetStatus(codes.Error, "Invalid request body")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.authService.UpdateProfile(ctx, identity, patch)
	if err != nil {
		span.SetStatus(codes.Error, "Profile update failed")
		h.writeError(w, r, l, err)
		return
	}

	span.SetStatus(codes.Ok, "Profile updated")
	api.WriteJSONResponse(w, r, http.StatusOK, view)
}

// ProtectedService godoc
// @Summary      Protected example
// @Description  Greets the authenticated user.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} ProtectedServiceResponse
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /protected-service [get]
func (h *AuthHandler) ProtectedService(w http.ResponseWriter, r *http.Request) {
	identity, ok := appMiddleware.IdentityFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, r, "Authentication required")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, ProtectedServiceResponse{
		Message: fmt.Sprintf("Hello %s, this is a protected service!", identity.Name),
		UserDetails: ProtectedUserBrief{
			Email:        identity.Email,
			DiabetesType: identity.DiabetesType,
		},
	})
}

func (h *AuthHandler) writeError(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrTooManyAttempts):
		api.ErrorResponse(w, r, http.StatusTooManyRequests, "Too many failed login attempts, try again later")
	case errors.Is(err, ErrInvalidCredentials):
		api.Unauthorized(w, r, "Incorrect email or password")
	case errors.Is(err, ErrEmailTaken):
		api.ErrorResponse(w, r, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, types.ErrValidation):
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
	default:
		status := api.StatusForError(err)
		if status == http.StatusUnauthorized {
			api.Unauthorized(w, r, "Could not validate credentials")
			return
		}
		if status == http.StatusInternalServerError {
			l.ErrorContext(r.Context(), "Request failed", slog.Any("error", err))
			api.ErrorResponse(w, r, status, "Internal server error")
			return
		}
		api.ErrorResponse(w, r, status, http.StatusText(status))
	}
}
