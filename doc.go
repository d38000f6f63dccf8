// Package users is a small user-management backend: account registration,
// credential verification, stateless JWT session tokens, and the CRUD
// surface around user records.
//
// Authentication core:
//   - HashPassword/ComparePasswordAndHash wrap bcrypt with randomized salts
//     and a self-describing cost factor, so stored hashes survive cost bumps.
//   - TokenService signs and validates HS256 JWTs carrying subject, issued-at,
//     and a fixed 24h expiry. Validation is pure computation against the
//     process-wide signing key; no session table is consulted.
//   - middleware/jwtware gates protected routes: it extracts the Bearer token,
//     validates it, and attaches the verified claims to the request context.
//     Every failure mode collapses to the same unauthorized response.
//   - Auther orchestrates login: identity lookup, password comparison, token
//     issuance. Unknown accounts and wrong passwords are indistinguishable to
//     callers.
//
// Issued tokens are not tracked server-side: a token stays valid until its
// embedded expiry even if the password changes or the account is deleted.
package users
