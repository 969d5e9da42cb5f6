// Package auth provides email/password authentication gated by a one time
// verification code, bearer token issuance and password reset by token.
//
// Registration:
//   - Register stores a PendingRegistration keyed by email and mails a six
//     digit code. Nothing is persisted until VerifyOTP confirms the code, at
//     which point a verified User row is created and the pending record is
//     dropped. Pending records live in a PendingStore; the default is process
//     local and lost on restart.
//
// Login and tokens:
//   - Login reports, in order, unknown user, unverified account and wrong
//     password. On success TokenService signs an HS256 token whose subject is
//     the email, valid for 24 hours by default.
//
// Password reset:
//   - RequestPasswordReset persists a single use token and mails a link.
//     ResetPassword consumes it inside one transaction so concurrent callers
//     with the same token cannot both succeed.
//
// Activity sinks:
//   - ActivitySink receives audit events for each operation. Sinks run
//     best-effort (errors are logged) and never receive passwords, codes or
//     tokens.
package auth
