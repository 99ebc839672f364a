package resolver

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RootModule is the sentinel id for a package-index file sitting directly
// in the project root.
const RootModule = "<root>"

// maxAncestorHops bounds the ancestor-package walk when an absolute import
// does not resolve from the project root directly.
const maxAncestorHops = 5

// ModuleResolver maps file paths to dotted module ids and import statements
// back to known modules. PathToModule is a pure function of the project
// root; ResolveImport additionally consults the set of modules discovered
// during enumeration, so Register all files before resolving.
type ModuleResolver struct {
	projectRoot string
	known       map[string]string // module id -> file path
	warnings    []string
}

func New(projectRoot string) *ModuleResolver {
	return &ModuleResolver{
		projectRoot: projectRoot,
		known:       make(map[string]string),
	}
}

func (r *ModuleResolver) PathToModule(filePath string) string {
	rel := filePath
	if filepath.IsAbs(filePath) {
		if relPath, err := filepath.Rel(r.projectRoot, filePath); err == nil {
			rel = relPath
		}
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimPrefix(rel, "./")

	parts := strings.Split(rel, "/")
	last := strings.TrimSuffix(parts[len(parts)-1], ".py")
	if last == "__init__" {
		parts = parts[:len(parts)-1]
	} else {
		parts[len(parts)-1] = last
	}

	if len(parts) == 0 {
		return RootModule
	}
	return strings.Join(parts, ".")
}

// Register records a discovered module so ResolveImport can probe it.
func (r *ModuleResolver) Register(module, path string) {
	if _, exists := r.known[module]; !exists {
		r.known[module] = path
	}
}

func (r *ModuleResolver) Known(module string) (string, bool) {
	path, ok := r.known[module]
	return path, ok
}

func (r *ModuleResolver) KnownCount() int {
	return len(r.known)
}

// ResolveImport maps an import statement back to a known module id.
// level 0 treats name as project-root-relative; level > 0 strips that many
// trailing components from fromModule before appending name. Returns
// ("", false) when the target is not a project module; the caller records
// that as an unresolved-import warning rather than an error.
func (r *ModuleResolver) ResolveImport(fromModule, name string, level int) (string, bool) {
	if level > 0 {
		base := r.relativeBase(fromModule, level)
		candidate := joinModule(base, name)
		if candidate == "" {
			candidate = RootModule
		}
		if _, ok := r.known[candidate]; ok {
			return candidate, true
		}
		return "", false
	}

	if name == "" {
		return "", false
	}

	if _, ok := r.known[name]; ok {
		return name, true
	}

	// Nested package layouts: probe the importer's ancestor packages.
	ancestors := ancestorPackages(fromModule)
	for i, anc := range ancestors {
		if i >= maxAncestorHops {
			break
		}
		candidate := joinModule(anc, name)
		if _, ok := r.known[candidate]; ok {
			return candidate, true
		}
	}

	return "", false
}

// LooksLocal is the heuristic for keeping edges whose exact target file we
// could not find but whose name clearly belongs to the project namespace.
func (r *ModuleResolver) LooksLocal(name string) bool {
	if name == "" {
		return false
	}
	if _, ok := r.known[name]; ok {
		return true
	}
	for mod := range r.known {
		if strings.HasPrefix(mod, name+".") || strings.HasPrefix(name, mod+".") {
			return true
		}
	}
	return false
}

// TakeWarnings drains warnings accumulated during resolution.
func (r *ModuleResolver) TakeWarnings() []string {
	w := r.warnings
	r.warnings = nil
	return w
}

func (r *ModuleResolver) relativeBase(fromModule string, level int) string {
	var parts []string
	if fromModule != RootModule && fromModule != "" {
		parts = strings.Split(fromModule, ".")
	}
	if level > len(parts) {
		r.warnings = append(r.warnings, fmt.Sprintf(
			"relative import level %d exceeds depth of module %q, clamped to project root",
			level, fromModule))
		return ""
	}
	return strings.Join(parts[:len(parts)-level], ".")
}

func ancestorPackages(module string) []string {
	if module == "" || module == RootModule {
		return nil
	}
	parts := strings.Split(module, ".")
	var out []string
	for i := len(parts) - 1; i > 0; i-- {
		out = append(out, strings.Join(parts[:i], "."))
	}
	return out
}

func joinModule(base, name string) string {
	switch {
	case base == "" || base == RootModule:
		return name
	case name == "":
		return base
	default:
		return base + "." + name
	}
}
