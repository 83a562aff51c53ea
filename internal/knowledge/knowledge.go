package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Doc is a single guideline document.
type Doc struct {
	Name    string
	Content string
}

// Library holds every loaded document for one run.
type Library struct {
	Docs []Doc
}

// Load reads all *.md files under dir in name order. A missing directory is
// not an error; runs proceed with an empty library and the caller decides how
// loudly to complain.
func Load(dir string) (*Library, error) {
	lib := &Library{}
	if dir == "" {
		return lib, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("glob knowledge dir: %w", err)
	}
	sort.Strings(matches)

	for _, path := range matches {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read knowledge doc %s: %w", filepath.Base(path), err)
		}
		lib.Docs = append(lib.Docs, Doc{
			Name:    strings.TrimSuffix(filepath.Base(path), ".md"),
			Content: string(content),
		})
	}
	return lib, nil
}

// Empty reports whether no documents were found.
func (l *Library) Empty() bool { return l == nil || len(l.Docs) == 0 }

// Combined concatenates all documents with named separators, the form the
// generator prompt consumes.
func (l *Library) Combined() string {
	if l.Empty() {
		return ""
	}
	var b strings.Builder
	for i, doc := range l.Docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== %s ===\n\n%s", doc.Name, strings.TrimSpace(doc.Content))
	}
	return b.String()
}

// Names lists document names in load order.
func (l *Library) Names() []string {
	if l.Empty() {
		return nil
	}
	names := make([]string, len(l.Docs))
	for i, doc := range l.Docs {
		names[i] = doc.Name
	}
	return names
}
