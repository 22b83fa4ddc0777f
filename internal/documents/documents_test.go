package documents

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

func TestDetectContentType(t *testing.T) {
	cases := []struct {
		declared, filename string
		data               []byte
		want               string
	}{
		{"text/plain; charset=utf-8", "a.bin", nil, "text/plain"},
		{"", "notes.pdf", nil, "application/pdf"},
		{"application/octet-stream", "scan.png", nil, "image/png"},
		{"", "", []byte("%PDF-1.4\n"), "application/pdf"},
		{"", "", nil, "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := DetectContentType(tc.declared, tc.filename, tc.data); got != tc.want {
			t.Errorf("DetectContentType(%q, %q) = %q, want %q", tc.declared, tc.filename, got, tc.want)
		}
	}
}

func TestExtractText(t *testing.T) {
	got := ExtractText("text/plain", "a.txt", []byte("  hello\x00 wor\x07ld\r\nnext\tline  "))
	if got != "hello world\nnext\tline" {
		t.Fatalf("text not cleaned: %q", got)
	}
	if got := ExtractText("text/markdown", "a.md", []byte{0xff, 'o', 'k'}); got != "ok" {
		t.Fatalf("invalid utf-8 not dropped: %q", got)
	}
	if got := ExtractText("image/jpeg", "a.jpg", []byte{0xff, 0xd8, 0xff}); got != "" {
		t.Fatalf("images are not read: %q", got)
	}
	if got := ExtractText("application/pdf", "broken.pdf", []byte("%PDF-garbage")); got != "" {
		t.Fatalf("broken pdf must give empty text, got %q", got)
	}
	if got := ExtractText("application/octet-stream", "blob", []byte{0x00, 0xc3, 0x28}); got != "" {
		t.Fatalf("binary must give empty text, got %q", got)
	}
}

func TestCleanTextTruncatesOnRuneBoundary(t *testing.T) {
	s := strings.Repeat("é", MaxExtractedBytes)
	got := CleanText(s)
	if len(got) > MaxExtractedBytes {
		t.Fatalf("not truncated: %d", len(got))
	}
	if !strings.HasSuffix(got, "é") {
		t.Fatalf("cut inside a rune")
	}
}

func TestLocalStoreSaveRemove(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(logger.Nop(), t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	entryID := uuid.New()
	rel, err := store.Save(ctx, entryID, "../../etc/My Receipt.txt", []byte("data"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(rel, entryID.String()+"/") || !strings.HasSuffix(rel, "-My_Receipt.txt") {
		t.Fatalf("unexpected stored path %q", rel)
	}
	full := filepath.Join(store.Root(), filepath.FromSlash(rel))
	if b, err := os.ReadFile(full); err != nil || string(b) != "data" {
		t.Fatalf("stored bytes: %q %v", b, err)
	}
	if err := store.Remove(ctx, rel); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(full); !os.IsNotExist(err) {
		t.Fatalf("file still present")
	}
	if err := store.Remove(ctx, rel); err != nil {
		t.Fatalf("second Remove should be a no-op: %v", err)
	}
	if err := store.Remove(ctx, "../outside"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}
