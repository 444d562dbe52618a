// Package api exposes the authentication flows over HTTP with chi.
//
// Browser navigations (provider login, OAuth callback, email verification,
// logout) answer with redirects; failures land on the login page with an
// error query parameter. Form posts (password login, registration,
// verification refresh, password change) answer with a JSON Response whose
// status is "success", "failure" or "redirect". Invalid payloads produce
// HTTP 400 with per-field messages.
//
// Every request passes through a middleware that resolves the session cookie
// into an *auth.User, available through UserFromContext.
package api
