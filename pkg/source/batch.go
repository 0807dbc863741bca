package source

import "github.com/ajitpratap0/cqlload/pkg/value"

// Batch is an ordered group of records pulled from a source. IDs are
// assigned per source starting at 1.
type Batch struct {
	ID      uint64
	Records []value.Record
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}
