package ingest

import (
	"github.com/joseph-ayodele/idverify/constants"
)

// Document is a group of page files that belong to one identity document.
type Document struct {
	Label string   // group key, relative to the scan root
	Paths []string // in page order
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Documents uint32
	Failed    uint32
}

// FileError is a path the scan could not read.
type FileError struct {
	Path string
	Err  string
}

// extSet defaults to constants.AllowedExtensions.
func extSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return constants.AllowedExtensions
	}
	out := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if e = constants.NormalizeExt(e); e != "" {
			out[e] = struct{}{}
		}
	}
	return out
}
