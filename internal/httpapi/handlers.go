// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/keygate/keygate/internal/auth"
	"github.com/keygate/keygate/internal/observability"
	"github.com/keygate/keygate/pkg/errutil"
)

// maxBodyBytes caps request bodies; auth payloads are tiny.
const maxBodyBytes = 1 << 20

// API wires the auth service to HTTP routes.
type API struct {
	auth    *auth.Service
	logger  *slog.Logger
	metrics *observability.Metrics
	limiter *auth.RateLimiter
}

// NewAPI creates the API. metrics may be nil when the observability server
// is disabled; limiter may be nil to disable credential throttling.
func NewAPI(authService *auth.Service, logger *slog.Logger, metrics *observability.Metrics, limiter *auth.RateLimiter) (*API, error) {
	if authService == nil {
		return nil, oops.Code("API_NIL_DEPENDENCY").Errorf("auth service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &API{auth: authService, logger: logger, metrics: metrics, limiter: limiter}, nil
}

// Handler returns the routed HTTP handler for the public API.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /api/auth/signup", a.limitAttempts(http.HandlerFunc(a.handleSignup)))
	mux.Handle("POST /api/auth/signin", a.limitAttempts(http.HandlerFunc(a.handleSignin)))
	mux.Handle("GET /api/users/me", a.requireAuth(http.HandlerFunc(a.handleMe)))
	mux.HandleFunc("GET /healthz", a.handleHealth)
	return a.withRequestLog(mux)
}

// signupRequest is the signup input payload.
type signupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// signinRequest is the signin input payload.
type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userPayload is the wire shape of a user record. The password hash is
// deliberately absent.
type userPayload struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// authResponse is the success payload for signup and signin.
type authResponse struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

// errorResponse is the failure payload. Field names the offending input
// field for validation and conflict errors.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func toUserPayload(user *auth.User) userPayload {
	return userPayload{
		ID:        user.ID.String(),
		Email:     user.Email,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	}
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !a.decode(w, r, &req) {
		return
	}

	token, user, err := a.auth.Signup(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		a.recordSignup(signupResult(err))
		a.writeError(w, r, err)
		return
	}

	a.recordSignup("created")
	a.writeJSON(w, http.StatusCreated, authResponse{Token: token, User: toUserPayload(user)})
}

func (a *API) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !a.decode(w, r, &req) {
		return
	}

	token, user, err := a.auth.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			a.recordSignin("invalid_credentials")
		} else {
			a.recordSignin("error")
		}
		a.writeError(w, r, err)
		return
	}

	a.recordSignin("success")
	a.writeJSON(w, http.StatusOK, authResponse{Token: token, User: toUserPayload(user)})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		// requireAuth always sets the user; reaching here is a wiring bug.
		a.writeError(w, r, oops.Code("API_MISSING_IDENTITY").Errorf("no authenticated user in context"))
		return
	}
	a.writeJSON(w, http.StatusOK, toUserPayload(user))
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into dst, replying 400 on malformed input.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body) //nolint:errcheck // drain for connection reuse
	}()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// writeError maps service errors onto HTTP status codes. Detailed internal
// variants are logged here and never serialized.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		a.writeJSON(w, http.StatusConflict, errorResponse{Error: "email already in use", Field: "email"})
	case errors.Is(err, auth.ErrDuplicateUsername):
		a.writeJSON(w, http.StatusConflict, errorResponse{Error: "username already taken", Field: "username"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		a.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid email or password"})
	case errors.Is(err, auth.ErrUnauthorized):
		a.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	default:
		if field, ok := validationField(err); ok {
			a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: field})
			return
		}
		errutil.LogError(a.logger, "request failed", oops.With("path", r.URL.Path).Wrap(err))
		a.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// validationField reports which input field a validation error names.
func validationField(err error) (string, bool) {
	switch errutil.Code(err) {
	case "AUTH_INVALID_EMAIL":
		return "email", true
	case "AUTH_INVALID_USERNAME":
		return "username", true
	case "AUTH_INVALID_PASSWORD":
		return "password", true
	default:
		return "", false
	}
}

// signupResult buckets a signup error for metrics.
func signupResult(err error) string {
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail), errors.Is(err, auth.ErrDuplicateUsername):
		return "duplicate"
	default:
		if _, ok := validationField(err); ok {
			return "invalid"
		}
		return "error"
	}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

func (a *API) recordSignup(result string) {
	if a.metrics != nil {
		a.metrics.SignupsTotal.WithLabelValues(result).Inc()
	}
}

func (a *API) recordSignin(result string) {
	if a.metrics != nil {
		a.metrics.SigninsTotal.WithLabelValues(result).Inc()
	}
}

func (a *API) recordVerification(result string) {
	if a.metrics != nil {
		a.metrics.TokenVerificationsTotal.WithLabelValues(result).Inc()
	}
}
