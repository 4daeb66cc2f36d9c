package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// ComputeHash returns the hex SHA-256 of the record's RFC 8785 canonical
// JSON with the Hash field cleared. PrevHash is part of the input, which
// links the record to its predecessor. There is no fallback to
// non-canonical bytes: a record that cannot be canonicalized has no hash.
func ComputeHash(r *Record) (string, error) {
	c := *r
	c.Hash = ""
	c.RecordedAt = c.RecordedAt.UTC().Truncate(time.Microsecond)

	data, err := json.Marshal(&c)
	if err != nil {
		return "", fmt.Errorf("marshal audit record %d: %w", r.Seq, err)
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("canonicalize audit record %d: %w", r.Seq, err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// MustComputeHash is like ComputeHash but panics on error. It is meant for
// building fixtures.
func MustComputeHash(r *Record) string {
	h, err := ComputeHash(r)
	if err != nil {
		panic(err)
	}
	return h
}
