package architecture_test

import (
	"bufio"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

type importRef struct {
	file string
	imp  string
}

func TestImportBoundaries(t *testing.T) {
	root, modulePath := moduleRoot(t)

	var violations []string
	for _, ref := range internalImports(t, root, modulePath) {
		layer := layerFor(ref.file)
		for _, bad := range disallowedImports(modulePath, layer) {
			if strings.HasPrefix(ref.imp, bad) {
				violations = append(violations, fmt.Sprintf("- %s imports %q (layer %s may not import %q)", ref.file, ref.imp, layer, bad))
				break
			}
		}
	}
	if len(violations) > 0 {
		t.Fatalf("import boundary violations:\n%s", strings.Join(violations, "\n"))
	}
}

// Only the composition root and the event fan-out talk to infrastructure
// clients directly. Everything else depends on small interfaces.
func TestClientsImportedOnlyByWiring(t *testing.T) {
	root, modulePath := moduleRoot(t)

	allowed := []string{"internal/app/", "internal/clients/", "internal/realtime/"}
	var violations []string
	for _, ref := range internalImports(t, root, modulePath) {
		if !strings.HasPrefix(ref.imp, modulePath+"/internal/clients/") {
			continue
		}
		ok := false
		for _, prefix := range allowed {
			if strings.HasPrefix(ref.file, prefix) {
				ok = true
				break
			}
		}
		if !ok {
			violations = append(violations, fmt.Sprintf("- %s imports %q", ref.file, ref.imp))
		}
	}
	if len(violations) > 0 {
		t.Fatalf("internal/clients imported outside the wiring layer:\n%s", strings.Join(violations, "\n"))
	}
}

func layerFor(rel string) string {
	switch {
	case strings.HasPrefix(rel, "internal/domain/"):
		return "domain"
	case strings.HasPrefix(rel, "internal/platform/"):
		return "platform"
	case strings.HasPrefix(rel, "internal/data/"):
		return "data"
	case strings.HasPrefix(rel, "internal/insights/"):
		return "insights"
	case strings.HasPrefix(rel, "internal/jobs/"):
		return "jobs"
	case strings.HasPrefix(rel, "internal/services/"):
		return "services"
	case strings.HasPrefix(rel, "internal/http/"):
		return "http"
	default:
		return ""
	}
}

func disallowedImports(modulePath string, layer string) []string {
	in := func(pkgs ...string) []string {
		out := make([]string, 0, len(pkgs))
		for _, p := range pkgs {
			out = append(out, modulePath+"/internal/"+p+"/")
		}
		return out
	}
	switch layer {
	case "domain":
		return in("platform", "data", "insights", "jobs", "services", "http", "app", "clients", "temporalx")
	case "platform":
		return in("domain", "data", "insights", "jobs", "services", "http", "app")
	case "data":
		return in("insights", "jobs", "services", "http", "app")
	case "insights":
		return in("jobs", "services", "http", "app")
	case "jobs":
		return in("services", "http", "app")
	case "services":
		return in("http", "app")
	case "http":
		return in("app", "jobs")
	default:
		return nil
	}
}

func internalImports(t *testing.T, root, modulePath string) []importRef {
	t.Helper()
	internalDir := filepath.Join(root, "internal")
	fset := token.NewFileSet()

	var refs []importRef
	walkErr := filepath.WalkDir(internalDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", "vendor", "node_modules", ".gocache":
				return filepath.SkipDir
			default:
				return nil
			}
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, spec := range f.Imports {
			if spec == nil || spec.Path == nil {
				continue
			}
			imp, err := strconv.Unquote(spec.Path.Value)
			if err != nil || !strings.HasPrefix(imp, modulePath+"/") {
				continue
			}
			// Trailing slash so "internal/data" matches the prefix "internal/data/".
			refs = append(refs, importRef{file: rel, imp: imp + "/"})
		}
		return nil
	})
	if walkErr != nil {
		t.Fatalf("walk internal/: %v", walkErr)
	}
	return refs
}

func moduleRoot(t *testing.T) (string, string) {
	t.Helper()
	start, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	root, err := findModuleRoot(start)
	if err != nil {
		t.Fatalf("find module root: %v", err)
	}
	modulePath, err := readModulePath(filepath.Join(root, "go.mod"))
	if err != nil {
		t.Fatalf("read module path: %v", err)
	}
	return root, modulePath
}

func findModuleRoot(start string) (string, error) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found from %s", start)
		}
		dir = parent
	}
}

func readModulePath(goModPath string) (string, error) {
	f, err := os.Open(goModPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "module ") {
			continue
		}
		mp := strings.TrimSpace(strings.TrimPrefix(line, "module "))
		if mp == "" {
			return "", fmt.Errorf("empty module path in %s", goModPath)
		}
		return mp, nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("module path not found in %s", goModPath)
}
