// Package prekey verifies signed prekeys received from other devices.
//
// Inputs come off the network, so decoding is lenient and every failure,
// malformed input included, is reported as "does not verify".
package prekey
