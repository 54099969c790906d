// Package relay is the HTTP client for the bundle directory.
//
// A device publishes its public bundle with PublishBundle and fetches a
// peer's with FetchBundle. Fetched bundles are untrusted until their signed
// prekey has been verified. Requests are rate limited on the client side and
// transient failures are retried with exponential backoff.
package relay
