package ingest

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/entity"
)

// DefaultMaxPageBytes bounds a single page file.
const DefaultMaxPageBytes = 20 << 20

// Load reads the pages of doc into a RawDocument with a fresh ID.
func Load(doc Document, maxPageBytes int64) (entity.RawDocument, error) {
	pages := make([]entity.RawPage, 0, len(doc.Paths))
	for _, p := range doc.Paths {
		page, err := LoadPage(p, maxPageBytes)
		if err != nil {
			return entity.RawDocument{}, err
		}
		pages = append(pages, page)
	}
	return entity.NewRawDocument(pages...), nil
}

// LoadPage reads one page file. Files over maxPageBytes are rejected;
// a non-positive limit means DefaultMaxPageBytes.
func LoadPage(path string, maxPageBytes int64) (entity.RawPage, error) {
	if maxPageBytes <= 0 {
		maxPageBytes = DefaultMaxPageBytes
	}
	f, err := os.Open(path)
	if err != nil {
		return entity.RawPage{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxPageBytes+1))
	if err != nil {
		return entity.RawPage{}, fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(data)) > maxPageBytes {
		return entity.RawPage{}, common.NewAppError("PAGE_TOO_LARGE",
			fmt.Sprintf("%s exceeds %d bytes", filepath.Base(path), maxPageBytes), common.ErrInvalidInput)
	}
	return entity.RawPage{
		Filename: filepath.Base(path),
		MimeType: mime.TypeByExtension(filepath.Ext(path)),
		Data:     data,
	}, nil
}
