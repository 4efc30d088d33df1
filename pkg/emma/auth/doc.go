// Package auth implements the out-of-band login handshake for the emma CLI:
// a single-use ticket is requested from the API, the user verifies it in a
// browser, and the credential announced over the verification subscription
// is persisted in a keychain or file backed credential store.
package auth
