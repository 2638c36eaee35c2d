package queue

import (
	"fmt"
)

// Batch represents a set of flow record lines
// read from the same source, to be classified
// in order.
type Batch struct {
	// An ID to identify the batch, unique
	// within a queue.
	ID string
	// The source the lines were read from,
	// such as the path of a log file.
	Source string
	// The record lines, one flow record each.
	Lines []string
}

func (b *Batch) String() string {
	return fmt.Sprintf("{Batch %s from %s: %d lines}", b.ID, b.Source, len(b.Lines))
}
