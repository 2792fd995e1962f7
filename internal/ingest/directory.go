package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/idverify/constants"
)

type ScanOptions struct {
	Exts       []string // nil means constants.AllowedExtensions
	SkipHidden bool
	// GroupByDir makes every directory below root one document. Otherwise
	// files group by stem with the page suffix removed ("ravi_front.jpg",
	// "ravi_back.jpg" -> "ravi").
	GroupByDir bool
}

var pageSuffix = regexp.MustCompile(`(?i)[ _.\-]+(front|back|p(?:age)?\s*\d+|\d{1,2})$`)

// ScanDirectory walks root and groups matching files into documents. Unreadable
// entries are counted and reported, never fatal.
func ScanDirectory(ctx context.Context, root string, opts ScanOptions) ([]Document, DirStats, []FileError, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, nil, errors.New("root path is required")
	}
	exts := extSet(opts.Exts)

	var stats DirStats
	var failed []FileError
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			failed = append(failed, FileError{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if opts.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !allowed(path, exts) {
			return nil
		}
		stats.Matched++
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, stats, failed, fmt.Errorf("walk: %w", err)
	}

	docs := Group(root, paths, opts.GroupByDir)
	stats.Documents = uint32(len(docs))
	return docs, stats, failed, nil
}

// Group turns page paths into documents, sorted by label.
func Group(root string, paths []string, byDir bool) []Document {
	groups := map[string][]string{}
	for _, p := range paths {
		key := groupKey(root, p, byDir)
		groups[key] = append(groups[key], p)
	}

	docs := make([]Document, 0, len(groups))
	for label, ps := range groups {
		sort.SliceStable(ps, func(i, j int) bool {
			ri, rj := pageRank(ps[i]), pageRank(ps[j])
			if ri != rj {
				return ri < rj
			}
			return ps[i] < ps[j]
		})
		docs = append(docs, Document{Label: label, Paths: ps})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Label < docs[j].Label })
	return docs
}

func groupKey(root, path string, byDir bool) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	dir := filepath.Dir(rel)
	if byDir && dir != "." {
		return filepath.ToSlash(dir)
	}
	stem := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	if s := pageSuffix.ReplaceAllString(stem, ""); s != "" {
		stem = s
	}
	return filepath.ToSlash(filepath.Join(dir, stem))
}

// pageRank orders front before back, then numbered pages.
func pageRank(path string) int {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	m := pageSuffix.FindStringSubmatch(stem)
	if m == nil {
		return 0
	}
	switch s := strings.ToLower(m[1]); s {
	case "front":
		return 0
	case "back":
		return 1
	default:
		n, _ := strconv.Atoi(strings.TrimLeft(s, "pag \t"))
		return n
	}
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}
