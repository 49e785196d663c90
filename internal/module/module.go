// Package module implements Ty's import path resolution and the
// compile-once module cache: a list of search directories, a
// findModule/loadAndCompile split, and a cache keyed by resolved path.
// The concrete compile step is injected as a callback rather than
// imported directly, since the compiler that produces a module's
// bytecode in turn needs to resolve imports through this loader --
// importing the compiler package here would create a cycle.
package module

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/mod/module"
	"golang.org/x/sync/singleflight"

	tyerrors "ty/internal/errors"
)

const fileExt = ".ty"

// Compiled is one module's compiled result. Artifact is typed any to
// avoid importing the compiler/bytecode packages (they import this
// package to resolve the imports they encounter).
type Compiled struct {
	DottedPath string
	FilePath   string
	Artifact   any
}

// CompileFunc compiles source read from filePath into whatever artifact
// the caller's compiler produces (a *compiler.ModuleArtifact in practice).
type CompileFunc func(source, filePath, dottedPath string) (any, error)

// Loader resolves `import a.b.c` to `a/b/c.ty`, searching the importing
// module's directory, the user's home directory, and any configured
// system paths, and ensures each resolved path is
// compiled exactly once even under concurrent imports.
type Loader struct {
	systemPaths []string
	compile     CompileFunc

	sf    singleflight.Group
	mu    sync.RWMutex
	cache map[string]*Compiled // keyed by resolved absolute file path
}

func NewLoader(compile CompileFunc, systemPaths ...string) *Loader {
	return &Loader{compile: compile, systemPaths: systemPaths, cache: map[string]*Compiled{}}
}

// AddSystemPath registers an additional system search directory after
// construction. The CLI's `-I` paths go through NewLoader's variadic
// argument instead.
func (l *Loader) AddSystemPath(p string) {
	l.systemPaths = append(l.systemPaths, p)
}

func segments(dottedPath string) []string { return strings.Split(dottedPath, ".") }

// validate applies golang.org/x/mod/module's import-path grammar to the
// slash-joined form of dottedPath. Only empty segments, and grammar
// errors that mention ".." or a path containing a NUL byte, are
// rejected; every other complaint from CheckImportPath (the
// domain-qualification rule, other disallowed characters) is ignored.
func validate(dottedPath string, segs []string) error {
	for _, s := range segs {
		if s == "" {
			return fmt.Errorf("empty path segment in import %q", dottedPath)
		}
	}
	joined := strings.Join(segs, "/")
	if err := module.CheckImportPath(joined + "/x"); err != nil {
		// CheckImportPath's domain-qualification rule for the first
		// element doesn't apply to script-language import paths; only
		// ".." errors and NUL bytes are fatal here.
		if strings.Contains(err.Error(), "..") || strings.ContainsAny(joined, "\x00") {
			return fmt.Errorf("invalid import path %q: %w", dottedPath, err)
		}
	}
	return nil
}

// Resolve maps a dotted import path to a filesystem path, searching (i)
// importingDir, (ii) $HOME, (iii) the configured system paths, in that
// order.
func (l *Loader) Resolve(dottedPath, importingDir string) (string, error) {
	segs := segments(dottedPath)
	if err := validate(dottedPath, segs); err != nil {
		return "", err
	}
	rel := filepath.Join(segs...) + fileExt

	roots := []string{importingDir}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		roots = append(roots, home)
	}
	roots = append(roots, l.systemPaths...)

	for _, root := range roots {
		if root == "" {
			continue
		}
		candidate := filepath.Join(root, rel)
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", tyerrors.New(tyerrors.CompileError,
		fmt.Sprintf("module not found: %s (searched %d roots)", dottedPath, len(roots)),
		tyerrors.Location{})
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load resolves dottedPath and compiles it exactly once, regardless of
// how many concurrent imports (by path or by alias) request it: importing
// the same module twice under different aliases evaluates its
// initializer exactly once. singleflight.Group collapses concurrent
// first-load requests
// for the same resolved path; the cache map makes subsequent (later,
// non-concurrent) imports instant.
func (l *Loader) Load(dottedPath, importingDir string) (*Compiled, error) {
	path, err := l.Resolve(dottedPath, importingDir)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	if c, ok := l.cache[path]; ok {
		l.mu.RUnlock()
		return c, nil
	}
	l.mu.RUnlock()

	v, err, _ := l.sf.Do(path, func() (any, error) {
		l.mu.RLock()
		if c, ok := l.cache[path]; ok {
			l.mu.RUnlock()
			return c, nil
		}
		l.mu.RUnlock()

		src, err := os.ReadFile(path)
		if err != nil {
			return nil, tyerrors.Wrap(tyerrors.CompileError,
				fmt.Sprintf("failed to read module %s", dottedPath), tyerrors.Location{}, err)
		}
		artifact, err := l.compile(string(src), path, dottedPath)
		if err != nil {
			return nil, err
		}
		c := &Compiled{DottedPath: dottedPath, FilePath: path, Artifact: artifact}

		l.mu.Lock()
		l.cache[path] = c
		l.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Compiled), nil
}

// Clear drops every cached compiled module (used by tests that want a
// clean loader between scenarios).
func (l *Loader) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = map[string]*Compiled{}
}
