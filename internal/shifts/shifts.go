// Package shifts defines the canonical representation of a day's worth of
// scheduled shifts and the deterministic serialization used to compare
// roster snapshots across sync cycles.
package shifts

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Shift is a single scheduled work interval within a day. Times are kept as
// the opaque strings the roster source reports (e.g. "06:00"); ordering and
// equality are purely lexical.
type Shift struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	RoleCode    string `json:"roleCode"`
	WorkingArea string `json:"workingArea"`
}

// ShiftSet is a canonically ordered list of shifts for one day. Always
// construct one through Canonicalize or Parse so that two sets describing
// the same day serialize identically regardless of source ordering.
type ShiftSet []Shift

// Canonicalize returns the shifts sorted by (start, end, roleCode,
// workingArea). The input slice is not modified. Duplicate shifts are kept;
// the roster source is the authority on whether a shift appears twice.
func Canonicalize(in []Shift) ShiftSet {
	out := make(ShiftSet, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		if a.RoleCode != b.RoleCode {
			return a.RoleCode < b.RoleCode
		}
		return a.WorkingArea < b.WorkingArea
	})
	return out
}

// Serialize renders the set as compact JSON. Because the set is canonically
// ordered and struct fields marshal in a fixed order, equal sets always
// produce byte-identical output, which is what the reconciler compares and
// what gets persisted.
func (s ShiftSet) Serialize() (string, error) {
	if s == nil {
		s = ShiftSet{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to serialize shift set: %w", err)
	}
	return string(b), nil
}

// Parse decodes a serialized shift set and re-canonicalizes it. Rows written
// by older versions of the service may predate the canonical ordering, so
// parsing never trusts stored order.
func Parse(raw string) (ShiftSet, error) {
	if raw == "" {
		return ShiftSet{}, nil
	}
	var out []Shift
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to parse shift set: %w", err)
	}
	return Canonicalize(out), nil
}

// Equal reports whether two canonical sets contain the same shifts. A nil
// set and an empty set are equal: both mean a day with no shifts.
func Equal(a, b ShiftSet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IsFree reports whether the set represents a day without any shifts.
func (s ShiftSet) IsFree() bool {
	return len(s) == 0
}
