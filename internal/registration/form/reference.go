package form

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// ReferencePrefix marks a transaction reference the client generated itself,
// as opposed to one typed in from a UPI receipt.
const ReferencePrefix = "UTR"

// MaxReferenceLength bounds generated references.
const MaxReferenceLength = 16

// GenerateReference builds a default transaction reference from the clock and
// a random suffix: UTR + 10 timestamp digits + 3 random digits. It is a
// convenience default only; the backend owns duplicate detection.
func GenerateReference(now time.Time) string {
	millis := now.UnixMilli() % 10_000_000_000
	ref := fmt.Sprintf("%s%010d%03d", ReferencePrefix, millis, rand.IntN(1000))
	if len(ref) > MaxReferenceLength {
		ref = ref[:MaxReferenceLength]
	}
	return ref
}
