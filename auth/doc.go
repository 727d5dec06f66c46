// Package auth verifies passwords against hashed-password credential
// records.
//
// Password hashing is CPU bound, bcrypt deliberately so, which makes an
// unbounded verification path an easy denial of service. The verifier runs
// all hash comparisons through a semaphore limiting how many run at once;
// callers beyond the limit wait, honoring context cancellation.
package auth
