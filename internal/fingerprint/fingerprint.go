package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DefaultSampleSize is how many data rows Signature folds in by default.
const DefaultSampleSize = 5

// NormalizeHeader canonicalizes a raw column header: lowercase, trimmed,
// internal whitespace collapsed, anything outside [a-z0-9 ] stripped, and
// remaining spaces replaced with underscores.
func NormalizeHeader(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	lastSpace := true // leading spaces are dropped
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ', r == '\t', r == '\n', r == '\r':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}

	normalized := strings.TrimRight(b.String(), " ")
	return strings.ReplaceAll(normalized, " ", "_")
}

// Fingerprint hashes an ordered header row into a stable lookup key.
// Order matters: reordering the same headers yields a different digest,
// which is how column-order drift is detected.
func Fingerprint(headers []string) string {
	h := sha256.New()
	for _, header := range headers {
		h.Write([]byte(NormalizeHeader(header)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Signature hashes headers plus the first sampleSize data rows, producing a
// finer-grained key for layouts whose header names alone are ambiguous
// across institutions. sampleSize <= 0 falls back to DefaultSampleSize.
func Signature(headers []string, sampleRows [][]string, sampleSize int) string {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if len(sampleRows) > sampleSize {
		sampleRows = sampleRows[:sampleSize]
	}

	h := sha256.New()
	for _, header := range headers {
		h.Write([]byte(NormalizeHeader(header)))
		h.Write([]byte{'\n'})
	}
	for _, row := range sampleRows {
		for _, value := range row {
			h.Write([]byte(strings.TrimSpace(value)))
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
