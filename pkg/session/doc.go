// Package session manages server-side login sessions addressed by a signed
// cookie.
//
// A Manager signs a random 256-bit session id with a cookie.Signer and writes
// it to the session cookie. The payload (user id, client IP and user agent)
// lives in a Store; the cookie never carries the raw store key, so ids cannot
// be enumerated without the server secret.
//
// Three stores ship with the package:
//
//   - RedisStore: JSON value under "<name>:<id>", expiry by key TTL.
//   - DatabaseStore: a row in the sessions table with an explicit expires_at;
//     expired rows are deleted when read and by DeleteExpired.
//   - MemoryStore: a process-local map with an optional cleanup goroutine.
//
// # Usage
//
//	signer := cookie.NewSigner(cfg.Secret)
//	store := session.NewRedisStore(redisClient, "auth_session")
//	sessions := session.New(store, signer,
//	    session.WithLifetime(7*24*time.Hour),
//	    session.WithCookieOptions(cookie.WithSecure(true)),
//	)
//
//	jar := cookies.Jar(w, r)
//	ok := sessions.SetSession(ctx, jar, session.SetParams{Data: session.Payload{UserID: id}})
//	payload, ok := sessions.GetSession(ctx, jar)
//
// The cookie is written only after the store accepted the record. Every
// storage failure is logged and reported as false.
package session
