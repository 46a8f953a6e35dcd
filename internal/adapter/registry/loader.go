// Package registry reads the on-disk model registry.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"autorouter/internal/domain"
)

// FileName is the registry file name inside a data directory.
const FileName = "model-registry.json"

// vendoredPattern finds registry data shipped inside a vendored dependency.
const vendoredPattern = "vendor/**/autorouter*/data/" + FileName

// ErrRegistryNotFound is returned when no registry file exists.
var ErrRegistryNotFound = errors.New("registry file not found")

// Load reads a registry file as a JSON array of model records. Entries are
// not validated; missing fields fall back to defaults downstream.
func Load(path string) ([]domain.ModelRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRegistryNotFound, path)
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var records []domain.ModelRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}
	return records, nil
}

// Resolver locates the registry when no explicit path is given.
type Resolver struct {
	// ExeDir is the directory of the running binary.
	ExeDir string
	// WorkDir is the current working directory.
	WorkDir string
}

// DefaultResolver uses the running executable and working directory.
func DefaultResolver() Resolver {
	var r Resolver
	if exe, err := os.Executable(); err == nil {
		r.ExeDir = filepath.Dir(exe)
	}
	if wd, err := os.Getwd(); err == nil {
		r.WorkDir = wd
	}
	return r
}

// Resolve returns explicit if it is set and exists. Otherwise it tries, in
// order, the data directory next to the installed binary, data/ under the
// working directory and registry data inside a vendored dependency.
func (r Resolver) Resolve(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrRegistryNotFound, explicit)
		}
		return explicit, nil
	}

	var tried []string
	for _, candidate := range r.candidates() {
		tried = append(tried, candidate)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	if r.WorkDir != "" {
		tried = append(tried, filepath.Join(r.WorkDir, vendoredPattern))
		if path, ok := r.findVendored(); ok {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w; tried: %s", ErrRegistryNotFound, strings.Join(tried, ", "))
}

func (r Resolver) candidates() []string {
	var out []string
	if r.ExeDir != "" {
		out = append(out, filepath.Join(r.ExeDir, "..", "data", FileName))
	}
	if r.WorkDir != "" {
		out = append(out, filepath.Join(r.WorkDir, "data", FileName))
	}
	return out
}

func (r Resolver) findVendored() (string, bool) {
	matches, err := doublestar.Glob(os.DirFS(r.WorkDir), vendoredPattern)
	if err != nil || len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return filepath.Join(r.WorkDir, filepath.FromSlash(matches[0])), true
}
