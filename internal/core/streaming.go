package core

// streaming.go holds io.Reader wrappers applied before CSV parsing.
//
// Spreadsheet tools on Windows like to prefix exports with a UTF-8 BOM
// (0xEF 0xBB 0xBF). Left in place it ends up glued to the first header name.

import (
	"bufio"
	"bytes"
	"io"
)

// BOMSkippingReader drops a leading UTF-8 BOM, if present, and passes
// everything else through unchanged.
type BOMSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{r: bufio.NewReader(r)}
}

// Read implements io.Reader. The BOM check happens on the first call.
func (b *BOMSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		// Peek reports io.EOF for inputs shorter than a BOM; those fall through.
		if head, _ := b.r.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
			if _, err := b.r.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return b.r.Read(p)
}
