package audit

import (
	"context"
	"fmt"
)

// verifyPageSize bounds how many records Verify loads per query.
const verifyPageSize = 500

// VerifyResult summarizes a chain walk.
type VerifyResult struct {
	Records  int64 `json:"records"`
	FirstSeq int64 `json:"first_seq,omitempty"`
	LastSeq  int64 `json:"last_seq,omitempty"`
	OK       bool  `json:"ok"`

	// Broken is the first failing link when OK is false.
	Broken *ChainError `json:"broken,omitempty"`
}

// Verify walks the trail in Seq order and checks every hash and link. The
// first remaining record may reference a pruned predecessor; every later
// record must reference the record immediately before it.
func Verify(ctx context.Context, storage Storage) (*VerifyResult, error) {
	res := &VerifyResult{OK: true}
	var prev *Record

	for offset := 0; ; offset += verifyPageSize {
		page, err := storage.Query(ctx, &Query{Limit: verifyPageSize, Offset: offset, SortOrder: "asc"})
		if err != nil {
			return nil, fmt.Errorf("failed to load audit records: %w", err)
		}

		for _, r := range page {
			if broken := checkLink(prev, r); broken != nil {
				res.OK = false
				res.Broken = broken
				return res, nil
			}
			if res.Records == 0 {
				res.FirstSeq = r.Seq
			}
			res.Records++
			res.LastSeq = r.Seq
			prev = r
		}

		if len(page) < verifyPageSize {
			return res, nil
		}
	}
}

func checkLink(prev, r *Record) *ChainError {
	got, err := ComputeHash(r)
	if err != nil {
		return &ChainError{Seq: r.Seq, ID: r.ID, Reason: err.Error()}
	}
	if got != r.Hash {
		return &ChainError{Seq: r.Seq, ID: r.ID, Reason: "hash mismatch"}
	}

	if prev == nil {
		if r.Seq == 1 && r.PrevHash != "" {
			return &ChainError{Seq: r.Seq, ID: r.ID, Reason: "genesis record has a previous hash"}
		}
		return nil
	}

	if r.Seq != prev.Seq+1 {
		return &ChainError{Seq: r.Seq, ID: r.ID, Reason: fmt.Sprintf("sequence gap after %d", prev.Seq)}
	}
	if r.PrevHash != prev.Hash {
		return &ChainError{Seq: r.Seq, ID: r.ID, Reason: "previous hash does not match"}
	}
	return nil
}
