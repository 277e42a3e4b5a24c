// Package verify supplements the spec's out-of-scope standalone verifier
// (_examples/original_source/verify_sort.cpp, verify_output.py) as an
// in-repo test helper library: it checks the quantified invariants of §8
// against a record file. The repository's own tests do not import it;
// each test package carries its own decoding and ordering checks.
package verify

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/SalimTag/SPM-Distributed-MergeSort/internal/record"
)

// ReadAll decodes every record in path as a plain record stream.
func ReadAll(path string) ([]record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []record.Record
	r := bytes.NewReader(data)
	for {
		rec, err := record.ReadFrom(r)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// PayloadLengthsInRange reports an error naming the first record whose
// payload length falls outside [PayloadMin, PayloadMax].
func PayloadLengthsInRange(recs []record.Record) error {
	for i, r := range recs {
		if len(r.Payload) < record.PayloadMin || len(r.Payload) > record.PayloadMax {
			return fmt.Errorf("verify: record %d has out-of-range payload length %d", i, len(r.Payload))
		}
	}
	return nil
}

// NonDecreasingKeys reports an error naming the first adjacent pair of
// records whose keys are out of order.
func NonDecreasingKeys(recs []record.Record) error {
	for i := 1; i < len(recs); i++ {
		if recs[i-1].Key > recs[i].Key {
			return fmt.Errorf("verify: key out of order at index %d: %d > %d", i, recs[i-1].Key, recs[i].Key)
		}
	}
	return nil
}

// multisetKey renders a record as a comparable, sortable string: the key
// followed by the exact payload bytes. Two records compare equal under
// this key iff they are the same (key, payload) pair.
func multisetKey(r record.Record) string {
	return fmt.Sprintf("%020d:%s", r.Key, r.Payload)
}

// SameMultiset reports whether a and b contain the same multiset of
// (key, payload) pairs, irrespective of order — the property equal-key
// records are explicitly allowed to violate (§8, §9).
func SameMultiset(a, b []record.Record) bool {
	if len(a) != len(b) {
		return false
	}
	ak := make([]string, len(a))
	bk := make([]string, len(b))
	for i, r := range a {
		ak[i] = multisetKey(r)
	}
	for i, r := range b {
		bk[i] = multisetKey(r)
	}
	sort.Strings(ak)
	sort.Strings(bk)
	for i := range ak {
		if ak[i] != bk[i] {
			return false
		}
	}
	return true
}

// ByteLengthEqual reports whether the two files have identical byte
// length, the invariant §8 states must hold between input and output.
func ByteLengthEqual(pathA, pathB string) (bool, error) {
	infoA, err := os.Stat(pathA)
	if err != nil {
		return false, err
	}
	infoB, err := os.Stat(pathB)
	if err != nil {
		return false, err
	}
	return infoA.Size() == infoB.Size(), nil
}
