// Package announce derives voice clip fingerprints for called tickets and
// resolves them to clip URLs through the text-to-speech collaborator.
package announce

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// CallInfo identifies one physical call of a ticket to a counter.
type CallInfo struct {
	Number      string
	Counter     string
	ServiceName string
	CalledAt    time.Time
}

const fieldSeparator = "\x1f"

var fingerprintKey = blake3.Sum256([]byte("qms announcement clip v1"))

// Fingerprint is the stable content key of a call announcement. Text fields
// are trimmed and case-folded; the call instant is taken in UTC at second
// precision.
func Fingerprint(info CallInfo) string {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("announce: blake3 keyed hash initialization failed: " + err.Error())
	}
	fields := []string{
		normalize(info.Number),
		normalize(info.Counter),
		normalize(info.ServiceName),
		info.CalledAt.UTC().Truncate(time.Second).Format(time.RFC3339),
	}
	_, _ = hasher.Write([]byte(strings.Join(fields, fieldSeparator)))
	return hex.EncodeToString(hasher.Sum(nil))
}

func normalize(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// Text is the sentence read out on the display board. Number characters are
// spaced so the synthesizer spells them.
func Text(info CallInfo) string {
	number := strings.ToUpper(strings.TrimSpace(info.Number))
	spelled := strings.Join(strings.Split(number, ""), " ")
	return fmt.Sprintf("Nomor antrian %s, silakan menuju loket %s, layanan %s.",
		spelled, strings.TrimSpace(info.Counter), strings.TrimSpace(info.ServiceName))
}
