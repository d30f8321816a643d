// Package auth is the client side authentication core of the storefront:
// bearer token handling, derived session state and route guard decisions.
//
// Tokens:
//   - TokenCodec decodes the JWT payload without verifying the signature
//     unless a TokenVerifier is configured. Malformed tokens are treated as
//     absent, never as fatal errors.
//   - TokenStore keeps a single token slot. MemoryTokenStore lives here; the
//     store/bunstore and store/redisstore packages provide durable slots.
//
// Sessions:
//   - SessionPolicy is pure: given a token and an instant it returns a Session.
//   - SessionChecker binds a store, a policy and a clock, and clears expired or
//     corrupt tokens from the store when it finds them.
//
// Auth state:
//   - StateBroadcaster is the single writer of AuthState. Subscriptions replay
//     the latest state and then follow publications in order. Profile fetches
//     run in the background and stale responses are dropped.
//   - AuthService writes the token before asking the broadcaster to publish.
//
// Guards:
//   - AuthGuard and AuthorizationGuard are pure functions returning a Decision.
//     Guards binds them to a SessionSource; middleware/guardware adapts them to
//     fiber.
package auth
