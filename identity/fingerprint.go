package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Some CSV rows carry none of the stable identifiers (cid, data_id, link).
// For those, a fingerprint over the normalized business facts is the only
// dedup key available.

// Longer forms first so "caddesi" is not mangled by the "cadde" rule.
var (
	streetReplacements = []struct{ full, abbrev string }{
		{"mahallesi", "mah"},
		{"boulevard", "blvd"},
		{"caddesi", "cad"},
		{"mahalle", "mah"},
		{"bulvari", "blv"},
		{"avenue", "ave"},
		{"street", "st"},
		{"cadde", "cad"},
		{"sokak", "sk"},
		{"suite", "ste"},
		{"floor", "fl"},
		{"road", "rd"},
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
	nonDigitRegex   = regexp.MustCompile(`\D`)
)

// Fingerprint derives a stable hex key from a business's title, address and
// phone. Two rows describing the same place hash the same even when the
// source formats the address differently.
func Fingerprint(title, address, phone string) string {
	input := fmt.Sprintf("%s|%s|%s",
		normalizeText(title),
		NormalizeAddress(address),
		normalizePhone(phone),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress lowercases, strips punctuation and abbreviates common
// street words so formatting differences collapse.
func NormalizeAddress(addr string) string {
	addr = normalizeText(addr)
	for _, r := range streetReplacements {
		addr = strings.ReplaceAll(addr, r.full, r.abbrev)
	}
	addr = multiSpaceRegex.ReplaceAllString(addr, " ")
	return strings.TrimSpace(addr)
}

func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnumRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(s, " "))
}

func normalizePhone(phone string) string {
	digits := nonDigitRegex.ReplaceAllString(phone, "")
	// +90 country prefix and a leading 0 are the same number.
	digits = strings.TrimPrefix(digits, "90")
	digits = strings.TrimPrefix(digits, "0")
	return digits
}
