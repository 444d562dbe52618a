// Package cookie provides HMAC cookie signing and a request-scoped cookie jar.
//
// # Signing
//
// A Signer turns a value into "<value>.<signature>", where the signature is
// the unpadded base64url HMAC-SHA256 of the value. Verify splits at the last
// dot, rejects empty values, and compares signatures in constant time. It
// never returns an error: a tampered or malformed cookie is simply absent.
//
//	signer := cookie.NewSigner(os.Getenv("AUTH_SECRET"))
//	signed := signer.Sign(sessionID)
//	id, ok := signer.Verify(signed)
//
// SignJSON and VerifyJSON wrap structured values in base64url before signing
// so the result stays inside the cookie octet set.
//
// # Jars
//
// Jar is the narrow interface consumed by the auth and session packages.
// HTTPJar implements it over an http.ResponseWriter and *http.Request and
// remembers writes made during the request, so a value deleted by one
// component is gone for the next one.
//
//	cookies := cookie.New(cookie.WithSecure(true))
//	jar := cookies.Jar(w, r)
//	jar.Set("state", state, cookie.WithMaxAge(600))
package cookie
