package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrymomot/authkit/pkg/auth"
	"github.com/dmitrymomot/authkit/pkg/logger"
)

type loginRequest struct {
	Plugin   string `json:"plugin"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=4,max=255"`
	State    string `json:"state" validate:"max=2048"`
}

type registerRequest struct {
	Name            string `json:"name" validate:"max=100"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,min=8,max=255"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

type refreshRequest struct {
	Email string `json:"email" validate:"omitempty,email,max=255"`
}

// VerificationStatus describes the pending verification bound to the
// browser.
type VerificationStatus struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
	ExpiresIn int64     `json:"expiresIn"`
}

// passwordLogin authenticates through a login plugin, "password" unless
// the payload names another one.
func (h *Handler) passwordLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserFromContext(r.Context()); ok {
		failure(w, http.StatusBadRequest, "User already logged in")
		return
	}

	if !h.limiter.Allow(h.ips.IP(r)) {
		failure(w, http.StatusTooManyRequests, "Too many login attempts")
		return
	}

	var req loginRequest
	if !h.bindOrFail(w, r, &req) {
		return
	}

	key := req.Plugin
	if key == "" {
		key = auth.ProviderPassword
	}
	plugin, ok := h.auth.Plugin(key)
	if !ok {
		failure(w, http.StatusBadRequest, "Plugin not found")
		return
	}

	user, err := plugin.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.recordLogin(key, false)
		status, msg := loginFailure(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "password login failed",
				logger.Component("api"),
				logger.Plugin(key),
				logger.Error(err),
			)
		}
		failure(w, status, msg)
		return
	}

	if h.emailVerification && !user.IsVerified() {
		h.recordLogin(key, false)
		failure(w, http.StatusForbidden, "Email address is not verified")
		return
	}

	if !h.startSession(w, r, user) {
		h.recordLogin(key, false)
		failure(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	h.recordLogin(key, true)

	state, _ := url.ParseQuery(req.State)
	goTo(w, safeRedirect(state.Get(redirectToParam), h.paths.Dashboard), "Login successful")
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserFromContext(r.Context()); ok {
		failure(w, http.StatusBadRequest, "User already logged in")
		return
	}

	var req registerRequest
	if !h.bindOrFail(w, r, &req) {
		return
	}

	jar := h.jar(w, r)
	res, err := h.password.Register(r.Context(), jar, auth.RegisterParams{
		Email:             req.Email,
		Password:          req.Password,
		Name:              req.Name,
		EmailVerification: h.emailVerification,
	})
	if err != nil {
		if h.emailVerification {
			h.recordVerification("issue", false)
		}
		if errors.Is(err, auth.ErrUserAlreadyExists) {
			failure(w, http.StatusConflict, "User already exists")
			return
		}
		h.logger.ErrorContext(r.Context(), "registration failed",
			logger.Component("api"),
			logger.Email(req.Email),
			logger.Error(err),
		)
		failure(w, http.StatusInternalServerError, "Failed to register")
		return
	}

	if res.Verification != nil {
		h.recordVerification("issue", true)
		success(w, "Verification email sent", h.status(*res.Verification))
		return
	}

	if !h.startSession(w, r, res.User) {
		failure(w, http.StatusInternalServerError, "Failed to create session")
		return
	}
	goTo(w, h.paths.Dashboard, "Registration successful")
}

// verify redeems the emailed token and signs the user in.
func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	if u, ok := UserFromContext(r.Context()); ok && u.IsVerified() {
		http.Redirect(w, r, h.paths.Dashboard, http.StatusFound)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		h.loginError(w, r, "Verification token is required")
		return
	}

	user, err := h.password.Verify(r.Context(), h.jar(w, r), token)
	if err != nil {
		h.recordVerification("redeem", false)
		msg := verificationMessage(err)
		if msg == "" {
			h.logger.ErrorContext(r.Context(), "verification failed",
				logger.Component("api"),
				logger.Error(err),
			)
			msg = "Verification failed"
		}
		h.loginError(w, r, msg)
		return
	}
	h.recordVerification("redeem", true)

	if !h.startSession(w, r, user) {
		h.loginError(w, r, "Failed to create session")
		return
	}
	http.Redirect(w, r, h.paths.Dashboard, http.StatusFound)
}

func (h *Handler) verificationStatus(w http.ResponseWriter, r *http.Request) {
	info, ok := h.password.VerificationCookie(h.jar(w, r))
	if !ok {
		failure(w, http.StatusNotFound, "No pending verification")
		return
	}
	success(w, "", h.status(info))
}

func (h *Handler) refreshVerification(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.bindOrFail(w, r, &req) {
		return
	}

	jar := h.jar(w, r)
	email := req.Email
	if email == "" {
		info, ok := h.password.VerificationCookie(jar)
		if !ok {
			invalid(w, ValidationErrors{"email": {"is required"}})
			return
		}
		email = info.Email
	}

	info, err := h.password.RefreshVerification(r.Context(), jar, email)
	if err != nil {
		h.recordVerification("issue", false)
		status, msg := refreshFailure(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "verification refresh failed",
				logger.Component("api"),
				logger.Email(email),
				logger.Error(err),
			)
		}
		failure(w, status, msg)
		return
	}
	h.recordVerification("issue", true)

	success(w, "Verification email sent", h.status(*info))
}

func (h *Handler) status(info auth.VerificationInfo) VerificationStatus {
	left := max(time.Until(info.Expiration), 0)
	return VerificationStatus{
		Email:     info.Email,
		ExpiresAt: info.Expiration,
		ExpiresIn: left.Milliseconds(),
	}
}

// bindOrFail writes the failure response itself and reports whether the
// handler may continue.
func (h *Handler) bindOrFail(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := h.bind(r, dst)
	if err == nil {
		return true
	}

	var verrs ValidationErrors
	switch {
	case errors.As(err, &verrs):
		invalid(w, verrs)
	case errors.Is(err, errUnsupportedBody):
		failure(w, http.StatusUnsupportedMediaType, "Unsupported content type")
	default:
		failure(w, http.StatusBadRequest, "Invalid payload")
	}
	return false
}

func loginFailure(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusUnauthorized, "User not found"
	case errors.Is(err, auth.ErrPasswordNotSet):
		return http.StatusUnauthorized, "User password does not match"
	case errors.Is(err, auth.ErrInvalidPassword):
		return http.StatusUnauthorized, "Invalid password"
	default:
		return http.StatusInternalServerError, "Login failed"
	}
}

func verificationMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrNoVerificationCookie):
		return "No verification cookie found"
	case errors.Is(err, auth.ErrVerificationNotFound):
		return "Verification not found"
	case errors.Is(err, auth.ErrVerificationEmailMismatch):
		return "Verification email mismatch"
	case errors.Is(err, auth.ErrVerificationExpired):
		return "Verification expired"
	default:
		return ""
	}
}

func refreshFailure(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, auth.ErrEmailAlreadyVerified):
		return http.StatusConflict, "Email already verified"
	case errors.Is(err, auth.ErrVerificationStillExists):
		return http.StatusConflict, "Old verification still exists"
	case errors.Is(err, auth.ErrVerificationOwnerMismatch):
		return http.StatusConflict, "Verification belongs to another user"
	default:
		return http.StatusInternalServerError, "Failed to send verification email"
	}
}
