package watcher

import (
	"fmt"

	"github.com/mr1hm/go-accident-alerts/internal/models"
)

type DeltaPolicy string

const (
	// PolicyTail inspects only the last entry of a snapshot that grew. Earlier
	// arrivals in the same gap are displayed but never escalate.
	PolicyTail DeltaPolicy = "tail"
	// PolicyCount evaluates every entry past the previous length.
	PolicyCount DeltaPolicy = "count"
	// PolicySequence evaluates every entry whose ledger seq exceeds the highest
	// seq seen so far. Requires the ledger to assign IDs.
	PolicySequence DeltaPolicy = "sequence"
)

func ParseDeltaPolicy(s string) (DeltaPolicy, error) {
	switch p := DeltaPolicy(s); p {
	case PolicyTail, PolicyCount, PolicySequence:
		return p, nil
	case "":
		return PolicyTail, nil
	default:
		return "", fmt.Errorf("unknown delta policy: %q", s)
	}
}

// Detect returns the indexes of next that count as new arrivals, and the
// highest seq to remember for the following poll.
func Detect(policy DeltaPolicy, prevLen int, lastSeq uint64, next []models.Alert) ([]int, uint64) {
	switch policy {
	case PolicyCount:
		if len(next) <= prevLen {
			return nil, lastSeq
		}
		idx := make([]int, 0, len(next)-prevLen)
		for i := prevLen; i < len(next); i++ {
			idx = append(idx, i)
		}
		return idx, lastSeq

	case PolicySequence:
		var maxSeq uint64
		for _, a := range next {
			if seq, ok := a.Seq(); ok && seq > maxSeq {
				maxSeq = seq
			}
		}
		if maxSeq < lastSeq {
			// The ledger restarted; rebaseline without escalating.
			return nil, maxSeq
		}
		var idx []int
		for i, a := range next {
			if seq, ok := a.Seq(); ok && seq > lastSeq {
				idx = append(idx, i)
			}
		}
		return idx, maxSeq

	default:
		if len(next) <= prevLen {
			return nil, lastSeq
		}
		return []int{len(next) - 1}, lastSeq
	}
}
