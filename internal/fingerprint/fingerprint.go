// Package fingerprint turns raw error messages into stable deduplication keys.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"

	"golang.org/x/text/unicode/norm"
)

// Placeholders substituted for volatile substrings. None of them contain
// digits, so normalizing twice is a no-op.
const (
	PlaceholderTimestamp = "{TIMESTAMP}"
	PlaceholderDate      = "{DATE}"
	PlaceholderID        = "{ID}"
)

// Normalization regexes compiled once at package init. Order matters:
// a timestamp starts with a date, and a date is made of digit runs. The
// date shapes only match whole digit runs, so "12024-01-01" stays three
// runs rather than a date with a stray digit.
var (
	reTimestamp = regexp.MustCompile(`(^|\D)\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\D|$)`)
	reDate      = regexp.MustCompile(`(^|\D)\d{4}-\d{2}-\d{2}(\D|$)`)
	reDigits    = regexp.MustCompile(`\d+`)
)

// Normalize replaces timestamps, dates and digit runs with fixed placeholders
// so messages differing only in embedded identifiers collapse together.
func Normalize(msg string) string {
	msg = replaceBounded(reTimestamp, msg, PlaceholderTimestamp)
	msg = replaceBounded(reDate, msg, PlaceholderDate)
	return reDigits.ReplaceAllString(msg, PlaceholderID)
}

// replaceBounded substitutes placeholder for the middle of every match of a
// boundary-guarded pattern. Adjacent matches share a separator, which one
// pass consumes, so it repeats until nothing changes. Every pass removes
// digits, so the loop ends.
func replaceBounded(re *regexp.Regexp, msg, placeholder string) string {
	repl := "${1}" + placeholder + "${2}"
	for {
		next := re.ReplaceAllString(msg, repl)
		if next == msg {
			return next
		}
		msg = next
	}
}

// Compute returns the lowercase hex SHA-256 identity of an error.
//
// The hashed payload is a JSON array of (entityType, entityID, normalized
// message, category) in that fixed order, each string NFC-normalized. Array
// encoding never depends on map iteration order, so the result is stable
// across processes and releases.
func Compute(entityType, entityID, message, category string) string {
	payload, _ := json.Marshal([4]string{
		norm.NFC.String(entityType),
		norm.NFC.String(entityID),
		norm.NFC.String(Normalize(message)),
		norm.NFC.String(category),
	})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
