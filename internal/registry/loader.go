// Package registry discovers GGUF model files on disk.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"chatd/internal/common/fsutil"
	"chatd/pkg/types"
)

// quantPattern matches llama.cpp quantization tags such as Q4_K_M, Q8_0 or F16.
var quantPattern = regexp.MustCompile(`(?i)(?:^|[-._])((?:I?Q\d+(?:_[A-Z0-9]+)*)|F16|F32|BF16)(?:$|[-._])`)

var families = []string{"olmoe", "llama", "mistral", "mixtral", "qwen", "phi", "gemma", "tinyllama"}

// LoadDir scans a directory for *.gguf files and builds a registry from
// filenames. ID is the full filename; Path is the absolute file path. Quant
// and Family are guessed from the name. Models are sorted by ID.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		stem := name[:len(name)-len(".gguf")]
		models = append(models, types.Model{
			ID:     name,
			Name:   stem,
			Path:   filepath.Join(abs, name),
			Quant:  quantOf(stem),
			Family: familyOf(stem),
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// Find resolves a model by ID, by ID without the .gguf extension, or by path.
func Find(models []types.Model, ref string) (types.Model, bool) {
	if ref == "" {
		return types.Model{}, false
	}
	for _, m := range models {
		if m.ID == ref || m.Path == ref || strings.EqualFold(m.Name, ref) {
			return m, true
		}
	}
	return types.Model{}, false
}

func quantOf(stem string) string {
	m := quantPattern.FindAllStringSubmatch(stem, -1)
	if len(m) == 0 {
		return ""
	}
	return strings.ToUpper(m[len(m)-1][1])
}

func familyOf(stem string) string {
	s := strings.ToLower(stem)
	// longest match wins so "tinyllama" is not reported as "llama"
	best := ""
	for _, f := range families {
		if strings.Contains(s, f) && len(f) > len(best) {
			best = f
		}
	}
	return best
}
