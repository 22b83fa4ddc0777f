package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/mindjourney-backend/internal/platform/envutil"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

const defaultRoot = "./data/documents"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store keeps uploaded document bytes. StoredPath values it returns are
// relative to the store root.
type Store interface {
	Save(ctx context.Context, entryID uuid.UUID, filename string, data []byte) (string, error)
	Remove(ctx context.Context, storedPath string) error
	Root() string
}

type localStore struct {
	log  *logger.Logger
	root string
}

func NewLocalStore(log *logger.Logger, root string) (Store, error) {
	if strings.TrimSpace(root) == "" {
		root = envutil.String("DOCUMENTS_DIR", defaultRoot)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("documents root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create documents root: %w", err)
	}
	return &localStore{log: log.With("service", "DocumentStore"), root: abs}, nil
}

func (s *localStore) Root() string { return s.root }

// Save writes data under <root>/<entryID>/<hash>-<name>. The content hash
// prefix keeps repeated uploads of the same filename apart.
func (s *localStore) Save(ctx context.Context, entryID uuid.UUID, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h := sha256.Sum256(data)
	name := SafeName(filename)
	rel := filepath.Join(entryID.String(), hex.EncodeToString(h[:])[:16]+"-"+name)
	full := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("mkdir entry dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	s.log.Debug("Document stored", "entry_id", entryID, "path", rel, "bytes", len(data))
	return filepath.ToSlash(rel), nil
}

func (s *localStore) Remove(ctx context.Context, storedPath string) error {
	full, err := s.resolve(storedPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

func (s *localStore) resolve(storedPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(storedPath))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid stored path %q", storedPath)
	}
	return filepath.Join(s.root, clean), nil
}

// SafeName reduces a client filename to a single safe path element.
func SafeName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = unsafeName.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "document"
	}
	if len(base) > 120 {
		base = base[len(base)-120:]
	}
	return base
}
