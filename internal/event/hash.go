package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/roach88/intrack/internal/canon"
)

// Domain prefix for content-addressed event identity.
// The version suffix allows a future algorithm migration.
const Domain = "intrack/event/v1"

// IDLength is the length of a hex-encoded SHA-256 id.
const IDLength = 64

// ShortLength is the number of characters shown for ids in listings.
const ShortLength = 8

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// header builds the canonical object hashed for an event. The line encoding is
// the same object plus the id.
func header(author string, ts int64, kind Kind, parents []string, data []byte) canon.Object {
	return canon.Object{
		"author":  canon.String(author),
		"data":    canon.Raw(data),
		"kind":    canon.String(string(kind)),
		"parents": canon.Strings(parents),
		"ts":      canon.Int(ts),
	}
}

// ComputeID returns the content-addressed id for the given event content.
// parents must already be sorted and deduplicated, data must be canonical.
func ComputeID(author string, ts int64, kind Kind, parents []string, data []byte) (string, error) {
	b, err := canon.Marshal(header(author, ts, kind, parents, data))
	if err != nil {
		return "", fmt.Errorf("compute event id: %w", err)
	}
	return hashWithDomain(Domain, b), nil
}

// ValidID reports whether s looks like an event id.
func ValidID(s string) bool {
	if len(s) != IDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ShortID returns the display prefix of an id.
func ShortID(id string) string {
	if len(id) <= ShortLength {
		return id
	}
	return id[:ShortLength]
}

// MatchPrefix resolves a user-supplied id prefix against ids.
// An exact id always matches, even when it also prefixes nothing else.
func MatchPrefix(prefix string, ids []string) (string, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrNoMatch)
	}
	var found []string
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
		if strings.HasPrefix(id, prefix) {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNoMatch, prefix)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %d ids", ErrAmbiguousPrefix, prefix, len(found))
	}
}
