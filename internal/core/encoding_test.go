package core

import (
	"errors"
	"strings"
	"testing"
)

func TestResolveEncoding(t *testing.T) {
	if got := ResolveEncoding(nil); got != DefaultEncoding {
		t.Errorf("ResolveEncoding(nil) = %q, want %q", got, DefaultEncoding)
	}

	withBOM := append([]byte{0xEF, 0xBB, 0xBF}, "name,price\nWidget,5\n"...)
	if got := ResolveEncoding(withBOM); got != DefaultEncoding {
		t.Errorf("ResolveEncoding(BOM) = %q, want %q", got, DefaultEncoding)
	}

	if got := ResolveEncoding([]byte("name,price\nWidget,5\n")); got == "" {
		t.Error("ResolveEncoding() returned an empty label")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		label    string
		wantText string
		wantEnc  string
	}{
		{
			name:     "valid utf-8",
			data:     []byte("café"),
			label:    "utf-8",
			wantText: "café",
			wantEnc:  "utf-8",
		},
		{
			name:     "latin-1 bytes under a utf-8 guess fall back",
			data:     []byte("caf\xe9"),
			label:    "utf-8",
			wantText: "café",
			wantEnc:  FallbackEncoding,
		},
		{
			name:     "explicit latin-1",
			data:     []byte("M\xfcnchen"),
			label:    "ISO-8859-1",
			wantText: "München",
			wantEnc:  "ISO-8859-1",
		},
		{
			name:     "unknown label falls back",
			data:     []byte("plain"),
			label:    "klingon-8",
			wantText: "plain",
			wantEnc:  FallbackEncoding,
		},
		{
			name:     "windows-1252 via html index",
			data:     []byte("\x93quoted\x94"),
			label:    "windows-1252",
			wantText: "“quoted”",
			wantEnc:  "windows-1252",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, used, err := Decode(tt.data, tt.label)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
			if used != tt.wantEnc {
				t.Errorf("encoding = %q, want %q", used, tt.wantEnc)
			}
		})
	}
}

func TestExtractBytes_Latin1(t *testing.T) {
	data := []byte("name,city\nJos\xe9,M\xfcnchen\nZo\xeb,K\xf6ln\nRen\xe9e,Z\xfcrich\nFran\xe7ois,Gen\xe8ve\n")

	ext, err := ExtractBytes(data, ParseOptions{})
	if err != nil {
		t.Fatalf("ExtractBytes() error = %v", err)
	}
	if ext.Encoding == "" {
		t.Error("Encoding not reported")
	}
	if got := ext.Table.Rows[0][0].String; got != "José" {
		t.Errorf("first cell = %q, want José", got)
	}
	if !strings.HasPrefix(ext.Table.Rows[1][1].String, "K") {
		t.Errorf("second city = %q", ext.Table.Rows[1][1].String)
	}
}

func TestDecodeError(t *testing.T) {
	err := &DecodeError{Encoding: "latin-1", Err: errInvalidUTF8}
	if !errors.Is(err, errInvalidUTF8) {
		t.Error("DecodeError should unwrap to its cause")
	}
	if !strings.HasPrefix(err.Error(), "encoding error: cannot decode as latin-1") {
		t.Errorf("Error() = %q", err.Error())
	}
}
