// Package app assembles the service from configuration: it opens the
// Postgres pool and the selected session backend, builds the providers, the
// password plugin and the HTTP routes, and runs the server.
package app
