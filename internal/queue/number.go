package queue

import "fmt"

const numberPad = 3

// FormatNumber renders the sequence zero-padded to three digits. Sequences
// past 999 widen rather than wrap, so A1000 follows A999.
func FormatNumber(prefix string, seq int) string {
	return fmt.Sprintf("%s%0*d", prefix, numberPad, seq)
}
