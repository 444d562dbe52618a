// Package clientip resolves the originating client address of a request.
//
// The address ends up in session payloads and keys the login rate limiter,
// so only headers set by a trusted proxy should be listed:
//
//	ips := clientip.New("CF-Connecting-IP")
//	addr := ips.IP(r)
package clientip
