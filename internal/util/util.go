package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extensions recognised as FASTA when scanning an input directory.
var fastaExtensions = []string{".fa", ".fasta", ".faa", ".fna", ".fas"}

func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// GenomeName is the base name of path with its last extension removed.
// "data/g1.faa" -> "g1", "g1.faa.gz" -> "g1.faa".
func GenomeName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	// A leading dot is part of the name, not an extension (".hidden" stays ".hidden").
	if ext == base {
		return base
	}
	return strings.TrimSuffix(base, ext)
}

func IsFastaName(name string) bool {
	lower := strings.ToLower(strings.TrimSuffix(name, ".gz"))
	for _, ext := range fastaExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ListFastas returns the FASTA files directly inside dir, sorted by name.
func ListFastas(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsFastaName(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
