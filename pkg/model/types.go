package model

import "github.com/yumyai/pepbio/internal/util"

type SequenceRecord struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Sequence    string `json:"sequence"`
	Genome      string `json:"genome"` // input file the record was read from
}

type InputFile struct {
	Path   string `json:"path"`
	Genome string `json:"genome"`
}

func NewInputFile(path string) InputFile {
	return InputFile{Path: path, Genome: util.GenomeName(path)}
}

// Options for a combine run. The zero value combines sequentially with
// unprefixed identifiers and 60-column sequence lines.
type Options struct {
	AddPrefix bool
	LineWidth int // <= 0 means DefaultLineWidth
	Jobs      int // files parsed concurrently, <= 1 means sequential
}

const DefaultLineWidth = 60

// Per input file counters.
type FileStats struct {
	Input       InputFile `json:"input"`
	Read        int       `json:"read"`
	Skipped     int       `json:"skipped"`
	StopTrimmed int       `json:"stop_trimmed"`
	Overwrites  int       `json:"overwrites"` // records replacing an identifier seen earlier
}

type Result struct {
	OutputPath string                `json:"output_path"`
	Written    int                   `json:"written"`
	Files      []FileStats           `json:"files"`
	Skipped    []*EmptySequenceError `json:"skipped"`
}
