// Package memzero wipes key material that is no longer needed.
package memzero

import "crypto/subtle"

// Zero overwrites every buffer with zeros. The copy goes through
// subtle.ConstantTimeCopy so it is not elided as a dead store.
func Zero(bufs ...[]byte) {
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	}
}
