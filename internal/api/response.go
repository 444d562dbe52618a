package api

import (
	"encoding/json"
	"net/http"
	"net/url"
)

// Response statuses.
const (
	StatusSuccess  = "success"
	StatusFailure  = "failure"
	StatusRedirect = "redirect"
)

// Response is the JSON envelope returned by the non-redirecting endpoints.
// Browsers following a redirect status read Redirect and navigate.
type Response struct {
	Status   string              `json:"status"`
	Message  string              `json:"message,omitempty"`
	Data     any                 `json:"data,omitempty"`
	Redirect string              `json:"redirect,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func success(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, Response{Status: StatusSuccess, Message: message, Data: data})
}

func failure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Status: StatusFailure, Message: message})
}

func goTo(w http.ResponseWriter, location, message string) {
	writeJSON(w, http.StatusOK, Response{Status: StatusRedirect, Message: message, Redirect: location})
}

func invalid(w http.ResponseWriter, errs ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, Response{
		Status:  StatusFailure,
		Message: "Invalid payload",
		Errors:  errs,
	})
}

// loginError sends the browser back to the login page with a readable
// message in the error query parameter.
func (h *Handler) loginError(w http.ResponseWriter, r *http.Request, message string) {
	q := url.Values{"error": {message}}
	http.Redirect(w, r, h.paths.Login+"?"+q.Encode(), http.StatusFound)
}
