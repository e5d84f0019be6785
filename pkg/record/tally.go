package record

import "fmt"

// Tally holds the process-wide counters for one run. Counters only
// increase and are owned by the single processing loop, so no locking
// is involved: the assembler bumps Bad, the filter bumps the rest.
type Tally struct {
	Retained   int
	Excluded   int
	Bad        int
	CRStripped int
}

// Attempted is the number of records the stream resolved into a
// pass/drop decision, completed or discarded.
func (t Tally) Attempted() int {
	return t.Retained + t.Excluded + t.Bad
}

func (t Tally) String() string {
	return fmt.Sprintf("retained=%d excluded=%d bad=%d cr_stripped=%d",
		t.Retained, t.Excluded, t.Bad, t.CRStripped)
}
