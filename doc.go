// Package auth implements the authentication and token lifecycle of an
// account service: credential verification, JWT access/refresh issuance and
// rotation, logout, third-party identity linking, and the password reset
// capability token flow.
//
// Tokens:
//   - Access and refresh tokens bind the account id (`userId`, mirrored in
//     `sub`) and carry a `pur` claim. Each purpose is signed with its own
//     secret, and verification rejects tokens minted for another purpose.
//   - Exactly one refresh token is active per account. Refresh overwrites the
//     stored value (rotation) and logout clears it. Concurrent refresh calls
//     for the same account are last-write-wins.
//
// Password reset:
//   - ForgotPassword mints a 30 minute reset token and hands it to a
//     ResetNotifier. Delivery is best-effort.
//   - ResetPassword gates on the token validity, decodes the account id and
//     rewrites the credential. There is no consumed-token ledger, a reset
//     token can be replayed until it expires, and existing sessions are kept.
//
// Third-party login:
//   - LoginWithProvider resolves or creates an account for a provider
//     assertion. An existing account with the same email is only reused when
//     it is linked to the same provider and holds the same assertion.
//
// Activity sinks:
//   - ActivitySink receives audit events for logins, refreshes, logouts,
//     registrations and password resets. Sinks run best-effort (errors are
//     logged) so you can forward to a database or queue without blocking
//     authentication.
package auth
