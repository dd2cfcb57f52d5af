// Package server provides HTTP routing, middleware, and the OAuth2 authorization code endpoints.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses a chi mux internally. Middleware is bound to a handler at registration
// time, so every call to [BasicRouter.Use] has to happen before routes are added.
//
// # Authorization Flow
//
// [AuthHandler] serves three routes:
//   - GET /login sets the spotify_auth_state cookie and redirects to the authorization endpoint
//   - GET /callback checks the state against the cookie, exchanges the code, stores one credential record and
//     redirects to /#access_token=...&refresh_token=...
//   - GET /refresh_token returns {"access_token": "..."} or a bare status code
//
// Browser-facing failures are redirects to /#error=state_mismatch or /#error=invalid_token.
// A state mismatch never reaches the token endpoint.
//
// # Handler Interface
//
// Handlers implement [Handler] by returning their [Route] list, which keeps route definitions next to the
// handler functions they point at.
//
// # Server
//
// [New] wires the router with request ids, access logging, panic recovery, CORS and a per-IP rate limiter,
// then [Server.Run] serves until its context is cancelled and drains for five seconds.
package server
