package model

import (
	"errors"
	"fmt"

	ggdb "github.com/yumyai/pepbio/pkg/db"
)

// Fatal conditions. Each aborts the run.
var (
	ErrNoInputs       = errors.New("no input FASTA files")
	ErrInputNotFound  = errors.New("input FASTA not found or unreadable")
	ErrMalformedFasta = ggdb.ErrMalformedFasta
	ErrOutputWrite    = errors.New("cannot write output FASTA")
)

// Stage names where an empty sequence was dropped.
const (
	StageInput = "input" // while reading a file
	StageFinal = "final" // while collecting records for output
)

// EmptySequenceError describes a record dropped because its sequence is empty.
// It is recovered locally and reported in Result.Skipped, never returned.
type EmptySequenceError struct {
	Genome string
	ID     string
	Stage  string
}

func (e *EmptySequenceError) Error() string {
	if e.Stage == StageFinal {
		return fmt.Sprintf("removing record with empty sequence: %s", e.ID)
	}
	return fmt.Sprintf("skipping empty sequence for %s in %s", e.ID, e.Genome)
}
