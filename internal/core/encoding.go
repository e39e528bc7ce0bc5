package core

// encoding.go guesses and applies the character encoding of an input file.
//
// Detection is statistical (chardet over a byte prefix) and therefore only a
// guess. Decode treats the guess as a first attempt: if the bytes do not
// decode cleanly it retries exactly once with Latin-1, which maps every byte
// to a rune and so never fails.

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	// EncodingSampleSize is how many leading bytes the detector inspects.
	EncodingSampleSize = 100_000

	// DefaultEncoding is used when detection yields nothing.
	DefaultEncoding = "utf-8"

	// FallbackEncoding is the single retry when the detected encoding fails.
	FallbackEncoding = "latin-1"
)

var (
	errInvalidUTF8 = errors.New("invalid utf-8 byte sequence")
	utf8BOM        = []byte{0xEF, 0xBB, 0xBF}
)

// ResolveEncoding returns the most likely encoding label for data.
// It never fails: empty input or a failed detection yields DefaultEncoding.
func ResolveEncoding(data []byte) string {
	sample := data[:min(len(data), EncodingSampleSize)]
	if len(sample) == 0 || bytes.HasPrefix(sample, utf8BOM) {
		return DefaultEncoding
	}

	result, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || result == nil || result.Charset == "" {
		return DefaultEncoding
	}
	return strings.ToLower(result.Charset)
}

// Decode converts data to a UTF-8 string using label, retrying once with
// FallbackEncoding on failure. It returns the text and the encoding that
// actually worked.
func Decode(data []byte, label string) (string, string, error) {
	text, err := decodeWith(data, label)
	if err == nil {
		return text, label, nil
	}

	text, fallbackErr := decodeWith(data, FallbackEncoding)
	if fallbackErr != nil {
		return "", "", &DecodeError{Encoding: FallbackEncoding, Err: errors.Join(err, fallbackErr)}
	}
	return text, FallbackEncoding, nil
}

func decodeWith(data []byte, label string) (string, error) {
	enc, err := lookupEncoding(label)
	if err != nil {
		return "", &DecodeError{Encoding: label, Err: err}
	}

	// UTF-8 decoders in x/text substitute U+FFFD silently; a wrong guess
	// must fail instead so the fallback gets a chance.
	if enc == nil {
		if !utf8.Valid(data) {
			return "", &DecodeError{Encoding: label, Err: errInvalidUTF8}
		}
		return string(data), nil
	}

	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", &DecodeError{Encoding: label, Err: err}
	}
	return string(out), nil
}

// lookupEncoding maps a label to an encoding. A nil encoding with a nil
// error means UTF-8, which needs no transformation.
func lookupEncoding(label string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8", "ascii", "us-ascii":
		return nil, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	return enc, nil
}
