package documents

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	contentTypePDF    = "application/pdf"
	contentTypeBinary = "application/octet-stream"

	// MaxExtractedBytes bounds the text kept per document.
	MaxExtractedBytes = 200_000
)

var textExtensions = map[string]bool{".txt": true, ".md": true, ".csv": true, ".log": true}

// DetectContentType prefers the declared type, then the filename
// extension, then content sniffing.
func DetectContentType(declared, filename string, data []byte) string {
	if ct := normalizeType(declared); ct != "" && ct != contentTypeBinary {
		return ct
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		if ct := normalizeType(mime.TypeByExtension(ext)); ct != "" {
			return ct
		}
	}
	if len(data) > 0 {
		return normalizeType(http.DetectContentType(data))
	}
	return contentTypeBinary
}

func normalizeType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mt
}

// ExtractText is best effort: any failure yields "". Images are stored but
// not read.
func ExtractText(contentType, filename string, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case strings.HasPrefix(contentType, "text/") || textExtensions[ext]:
		return CleanText(string(data))
	case contentType == contentTypePDF || ext == ".pdf":
		return CleanText(pdfText(data))
	case strings.HasPrefix(contentType, "image/"):
		return ""
	case utf8.Valid(data):
		return CleanText(string(data))
	default:
		return ""
	}
}

func pdfText(data []byte) (out string) {
	defer func() {
		// the pdf reader panics on some malformed xref tables
		if recover() != nil {
			out = ""
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	b, err := io.ReadAll(io.LimitReader(plain, MaxExtractedBytes*2))
	if err != nil {
		return ""
	}
	return string(b)
}

// CleanText drops invalid UTF-8 and control characters other than tab and
// newline, trims, and truncates to MaxExtractedBytes on a rune boundary.
func CleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if len(s) <= MaxExtractedBytes {
		return s
	}
	cut := MaxExtractedBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
