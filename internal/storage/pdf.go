package storage

import (
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// PageCount reads the page count from a PDF document.
func PageCount(r io.ReaderAt, size int64) (pages int, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = 0, fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}
