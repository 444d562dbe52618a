// Package auth implements OAuth login flows, a password plugin with email
// verification and the Instance facade that ties providers, plugins and a
// session manager together.
//
// Provider adapters keep the CSRF state and PKCE verifier in short-lived
// cookies through a StateStore. On the callback the state is consumed once,
// the code is exchanged and the profile is mapped to a ProviderUser:
//
//	inst := auth.New(cfg, sessions,
//		auth.WithProvider("google", auth.NewGoogle(googleCfg)),
//		auth.WithProvider("github", auth.NewGitHub(githubCfg)),
//		auth.WithPlugin("password", auth.NewPassword(users, signer)),
//	)
//
//	url, err := inst.GetAuthenticationURL("google", jar, auth.AuthURLParams{})
//
// Persisting the user and creating the session is left to the caller, which
// keeps the Instance free of storage concerns.
//
// Errors returned by providers are ErrInvalidCodeOrState,
// ErrUserInfoUnavailable or *ProviderError. An unknown provider key yields
// ErrInvalidProvider.
package auth
