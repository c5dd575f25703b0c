package control

import "fmt"

// BulkResult is the aggregate outcome of a bulk command, with the per-resource
// error (nil on success) for every sub-command actually issued.
type BulkResult struct {
	Requested int
	Succeeded int
	Failed    int
	Outcomes  map[string]error
}

// PartialFailure reports a bulk command where some sub-commands succeeded and
// others failed. The accompanying BulkResult carries the per-item outcomes.
type PartialFailure struct {
	Succeeded int
	Failed    int
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("bulk command partially failed: %d succeeded, %d failed", e.Succeeded, e.Failed)
}
