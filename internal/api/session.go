package api

import (
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/authkit/pkg/auth"
	"github.com/dmitrymomot/authkit/pkg/logger"
)

// ProviderMock is stored as the provider of accounts created by the
// development mock login.
const ProviderMock = "mock"

// Me is the public view of the signed-in user.
type Me struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Image         string     `json:"image,omitempty"`
	Provider      string     `json:"provider"`
	Role          string     `json:"role"`
	EmailVerified bool       `json:"emailVerified"`
	VerifiedAt    *time.Time `json:"verifiedAt,omitempty"`
	HasPassword   bool       `json:"hasPassword"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type changePasswordRequest struct {
	OldPassword        string `json:"oldPassword" validate:"max=255"`
	NewPassword        string `json:"newPassword" validate:"required,min=8,max=100"`
	ConfirmNewPassword string `json:"confirmNewPassword" validate:"required,eqfield=NewPassword"`
}

type mockLoginRequest struct {
	Name  string `json:"name" validate:"required,min=4,max=255"`
	Email string `json:"email" validate:"required,email,max=255"`
	State string `json:"state" validate:"max=2048"`
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.DeleteSession(r.Context(), h.jar(w, r))
	http.Redirect(w, r, h.paths.Home, http.StatusFound)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	success(w, "", Me{
		ID:            u.ID.String(),
		Email:         u.Email,
		Name:          u.Name,
		Image:         u.Image,
		Provider:      u.Provider,
		Role:          u.Role,
		EmailVerified: u.IsVerified(),
		VerifiedAt:    u.EmailVerifiedAt,
		HasPassword:   u.PasswordHash != "",
		CreatedAt:     u.CreatedAt,
	})
}

// changePassword sets a new password. Accounts that already have one must
// present it; OAuth-only accounts may set one directly.
func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())

	var req changePasswordRequest
	if !h.bindOrFail(w, r, &req) {
		return
	}

	if u.PasswordHash != "" {
		if req.OldPassword == "" {
			invalid(w, ValidationErrors{"oldPassword": {"is required"}})
			return
		}
		ok, err := auth.ComparePassword(u.PasswordHash, req.OldPassword)
		if err != nil || !ok {
			failure(w, http.StatusUnauthorized, "Invalid password")
			return
		}
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		failure(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	updated := *u
	updated.PasswordHash = hash
	updated.Provider = auth.ProviderPassword
	updated.UpdatedAt = time.Now()
	if err := h.users.UpdateUser(r.Context(), &updated); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to update password",
			logger.Component("api"),
			logger.UserID(u.ID),
			logger.Error(err),
		)
		failure(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	success(w, "Password updated successfully", nil)
}

// mock signs in any email address without credentials.
func (h *Handler) mock(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserFromContext(r.Context()); ok {
		goTo(w, h.paths.Home, "User already logged in")
		return
	}

	var req mockLoginRequest
	if !h.bindOrFail(w, r, &req) {
		return
	}

	now := time.Now()
	user, err := h.users.UpsertUserByEmail(r.Context(), &auth.User{
		ID:              uuid.New(),
		Email:           auth.NormalizeEmail(req.Email),
		Name:            req.Name,
		Provider:        ProviderMock,
		Role:            auth.RoleUser,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "mock login failed",
			logger.Component("api"),
			logger.Email(req.Email),
			logger.Error(err),
		)
		failure(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	if !h.startSession(w, r, user) {
		failure(w, http.StatusInternalServerError, "Failed to set session")
		return
	}
	h.recordLogin(ProviderMock, true)

	state, _ := url.ParseQuery(req.State)
	goTo(w, safeRedirect(state.Get(redirectToParam), h.paths.Home), "User logged in successfully")
}
