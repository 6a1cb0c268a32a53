package tender

import (
	"encoding/json"
	"fmt"
)

// Records is a JSON array of lot records. Elements that are not objects
// decode to nil records, which grouping drops and counts as skipped, so one
// malformed element never fails the whole batch.
type Records []RawRecord

func (r *Records) UnmarshalJSON(data []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return fmt.Errorf("decode records: %w", err)
	}
	out := make(Records, len(elems))
	for i, elem := range elems {
		var rec RawRecord
		if err := json.Unmarshal(elem, &rec); err != nil {
			continue
		}
		out[i] = rec
	}
	*r = out
	return nil
}

// Malformed counts the nil entries left by non-object elements.
func (r Records) Malformed() int {
	n := 0
	for _, rec := range r {
		if rec == nil {
			n++
		}
	}
	return n
}
