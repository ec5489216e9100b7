package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/handler/dto"
	"github.com/authgate/authgate/internal/metrics"
	"github.com/authgate/authgate/internal/middleware"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/service"
)

const (
	signupMessage    = "User created successfully!"
	dashboardMessage = "Welcome to the dashboard!"
	passwordGrant    = "password"
)

// AuthService is the account logic behind the auth endpoints.
type AuthService interface {
	Signup(ctx context.Context, input service.SignupInput) error
	Login(ctx context.Context, input service.LoginInput) (*auth.IssuedToken, error)
}

// EventPublisher receives signup and login outcomes.
type EventPublisher interface {
	PublishAsync(event audit.Event)
}

// AuthHandler handles signup, token and dashboard requests.
type AuthHandler struct {
	svc    AuthService
	events EventPublisher
	logger *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. events may be nil.
func NewAuthHandler(svc AuthService, events EventPublisher, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		svc:    svc,
		events: events,
		logger: logger,
	}
}

// Signup handles POST /signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeDecodeError(w, err)
		return
	}

	err := h.svc.Signup(r.Context(), service.SignupInput{
		Username: req.Username,
		Password: req.Password,
	})
	// Events and logs carry the stored form of the name.
	username := model.NormalizeUsername(req.Username)
	h.publish(r, audit.EventSignup, username, err)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("user_created",
		slog.String("username", username),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: signupMessage})
}

// Token handles POST /token. Credentials may be JSON or an
// application/x-www-form-urlencoded OAuth2 password grant.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTokenRequest(r)
	if err != nil {
		h.writeDecodeError(w, err)
		return
	}
	if req.GrantType != "" && req.GrantType != passwordGrant {
		writeError(w, http.StatusBadRequest, "UNSUPPORTED_GRANT_TYPE", "Only the password grant is supported")
		return
	}

	token, err := h.svc.Login(r.Context(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	h.publish(r, audit.EventLogin, model.NormalizeUsername(req.Username), err)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("token_issued",
		slog.String("token_id", token.TokenID),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	writeJSON(w, http.StatusOK, dto.ToTokenResponse(token))
}

// Dashboard handles GET /dashboard. Must be mounted behind middleware.Auth.
func (h *AuthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	username := auth.UsernameFromContext(r.Context())
	if username == "" {
		writeUnauthorized(w)
		return
	}

	writeJSON(w, http.StatusOK, dto.DashboardResponse{
		Message:  dashboardMessage,
		Username: username,
	})
}

// decodeTokenRequest reads credentials from a form or JSON body.
func decodeTokenRequest(r *http.Request) (dto.TokenRequest, error) {
	var req dto.TokenRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, err
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
		req.GrantType = r.PostFormValue("grant_type")
		return req, nil
	default:
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
}

// handleServiceError maps service errors to HTTP responses.
func (h *AuthHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())

	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", service.InvalidInputReason(err))
	case errors.Is(err, service.ErrUsernameTaken):
		writeError(w, http.StatusBadRequest, "USERNAME_TAKEN", "Username already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect username or password")
	case errors.Is(err, service.ErrInvalidToken):
		writeUnauthorized(w)
	case errors.Is(err, service.ErrStorageUnavailable):
		h.logger.Error("storage_unavailable",
			slog.String("error", err.Error()),
			slog.String("request_id", requestID),
		)
		writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable")
	default:
		h.logger.Error("internal_error",
			slog.String("error", err.Error()),
			slog.String("request_id", requestID),
		)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// publish records the outcome of a signup or login on the audit stream.
func (h *AuthHandler) publish(r *http.Request, eventType, username string, err error) {
	if h.events == nil {
		return
	}
	h.events.PublishAsync(audit.NewEvent(
		eventType,
		outcome(err),
		username,
		remoteIP(r),
		r.UserAgent(),
		middleware.GetRequestID(r.Context()),
		time.Now(),
	))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case errors.Is(err, service.ErrInvalidInput):
		return metrics.StatusInvalidInput
	case errors.Is(err, service.ErrUsernameTaken):
		return metrics.StatusUsernameTaken
	case errors.Is(err, service.ErrInvalidCredentials):
		return metrics.StatusInvalidCredentials
	default:
		return metrics.StatusError
	}
}

// remoteIP strips the port, if any. RemoteAddr reflects forwarding headers
// only when the router trusts them.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeDecodeError reports a body that could not be read or parsed.
func (h *AuthHandler) writeDecodeError(w http.ResponseWriter, err error) {
	if isBodyTooLarge(err) {
		writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Could not validate credentials")
}
