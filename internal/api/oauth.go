package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/authkit/pkg/auth"
	"github.com/dmitrymomot/authkit/pkg/logger"
)

const redirectToParam = "redirectTo"

// providerLogin redirects to the IdP. The OAuth state carries a random nonce
// and the optional redirectTo target, round-tripped through the callback.
func (h *Handler) providerLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserFromContext(r.Context()); ok {
		http.Redirect(w, r, h.paths.Home, http.StatusFound)
		return
	}

	provider := chi.URLParam(r, "provider")
	if !h.auth.HasProvider(provider) {
		h.loginError(w, r, "Invalid provider")
		return
	}

	state := url.Values{"nonce": {auth.GenerateState()}}
	if to := r.URL.Query().Get(redirectToParam); to != "" {
		state.Set(redirectToParam, to)
	}

	target, err := h.auth.GetAuthenticationURL(provider, h.jar(w, r), auth.AuthURLParams{
		State: state.Encode(),
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build authentication url",
			logger.Component("api"),
			logger.Provider(provider),
			logger.Error(err),
		)
		h.loginError(w, r, "Failed to start login")
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// callback completes the OAuth flow, upserts the local user and starts a
// session. Every failure lands on the login page with an error message.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserFromContext(r.Context()); ok {
		http.Redirect(w, r, h.paths.Home, http.StatusFound)
		return
	}

	provider := chi.URLParam(r, "provider")
	if !h.auth.HasProvider(provider) {
		h.loginError(w, r, "Invalid provider")
		return
	}

	result, err := h.auth.GetAuthenticatedUser(r.Context(), provider, h.jar(w, r), auth.AuthorizeParams{
		URL: r.URL,
	})
	if err != nil {
		h.recordLogin(provider, false)
		h.loginError(w, r, callbackMessage(err))
		return
	}

	pu := result.User
	if pu.Email == "" {
		h.recordLogin(provider, false)
		h.loginError(w, r, "Email address not available")
		return
	}

	now := time.Now()
	candidate := &auth.User{
		ID:           uuid.New(),
		Email:        auth.NormalizeEmail(pu.Email),
		Name:         pu.Name,
		Image:        pu.Picture,
		Provider:     provider,
		Role:         auth.RoleUser,
		AccessToken:  pu.AccessToken,
		RefreshToken: pu.RefreshToken,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if candidate.Name == "" {
		candidate.Name = candidate.Email
	}
	if pu.EmailVerified {
		candidate.EmailVerifiedAt = &now
	}

	user, err := h.users.UpsertUserByEmail(r.Context(), candidate)
	if err != nil {
		h.recordLogin(provider, false)
		h.logger.ErrorContext(r.Context(), "failed to upsert user",
			logger.Component("api"),
			logger.Provider(provider),
			logger.Email(candidate.Email),
			logger.Error(err),
		)
		h.loginError(w, r, "Failed to create user")
		return
	}

	if !h.startSession(w, r, user) {
		h.recordLogin(provider, false)
		h.loginError(w, r, "Failed to create session")
		return
	}
	h.recordLogin(provider, true)

	state, _ := url.ParseQuery(result.State)
	http.Redirect(w, r, safeRedirect(state.Get(redirectToParam), h.paths.Dashboard), http.StatusFound)
}

func callbackMessage(err error) string {
	var pe *auth.ProviderError
	switch {
	case errors.Is(err, auth.ErrInvalidProvider):
		return "Invalid provider"
	case errors.Is(err, auth.ErrInvalidCodeOrState):
		return "Invalid code or state"
	case errors.Is(err, auth.ErrUserInfoUnavailable):
		return "Failed to get user info"
	case errors.As(err, &pe) && pe.Message != "":
		return pe.Message
	default:
		return "Authentication failed"
	}
}

// safeRedirect accepts same-origin paths only. Protocol-relative ("//host")
// and backslash forms are rejected.
func safeRedirect(target, fallback string) string {
	if target == "" || target[0] != '/' {
		return fallback
	}
	if len(target) > 1 && (target[1] == '/' || target[1] == '\\') {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}
