package fqcomp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	fqerrors "github.com/tamirms/fqcomp/errors"
)

// SketchFileExt is the extension LoadLibrary looks for.
const SketchFileExt = ".sketch"

// Reference is one named reference sketch.
type Reference struct {
	Name   string
	Path   string // empty for references built in memory
	Sketch *Sketch
}

// ReferenceLoadError reports why a single reference entry was skipped.
// It matches both errors.ErrReferenceLoad and the underlying cause.
type ReferenceLoadError struct {
	Path string
	Err  error
}

func (e *ReferenceLoadError) Error() string {
	return fmt.Sprintf("could not load %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *ReferenceLoadError) Unwrap() []error {
	return []error{fqerrors.ErrReferenceLoad, e.Err}
}

// Library is an ordered, read-only set of reference sketches that share one
// k-mer definition. It is safe to share across concurrent analyses.
type Library struct {
	params Params
	refs   []Reference
	byName map[string]int
}

// NewLibrary builds a library from in-memory references, in the given order.
// Every reference must be comparable with samples built with p (see
// LoadLibrary); the first incompatible or duplicate entry is returned as a
// *ReferenceLoadError. An empty list is a configuration error.
func NewLibrary(p Params, refs []Reference) (*Library, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	lib := &Library{params: p, byName: make(map[string]int, len(refs))}
	for _, ref := range refs {
		if err := lib.add(ref); err != nil {
			return nil, &ReferenceLoadError{Path: ref.Name, Err: err}
		}
	}
	if len(lib.refs) == 0 {
		return nil, fmt.Errorf("%w: %w", fqerrors.ErrConfiguration, fqerrors.ErrNoValidReferences)
	}
	return lib, nil
}

func (l *Library) add(ref Reference) error {
	if ref.Sketch == nil {
		return fmt.Errorf("%w: nil sketch", fqerrors.ErrCorruptedSketch)
	}
	if err := l.params.checkReference(ref.Sketch.params); err != nil {
		return err
	}
	if _, dup := l.byName[ref.Name]; dup {
		return fmt.Errorf("%w: %q", fqerrors.ErrDuplicateReference, ref.Name)
	}
	l.byName[ref.Name] = len(l.refs)
	l.refs = append(l.refs, ref)
	return nil
}

// LoadLibrary loads every *.sketch file in dir, in file name order.
//
// Sample parameters come from the options (WithKSize, WithScaled, ...). A
// reference is skipped, with a warning on the configured logger, when its
// file is malformed, its k-mer size, hash function or seed differ from the
// sample's, its scale does not divide the sample scale, or its name repeats
// an earlier entry. Skipping is not fatal unless nothing is left.
//
// A missing directory or one without candidate files fails with
// errors.ErrNoReferencesFound, and a directory whose every entry was skipped
// fails with errors.ErrNoValidReferences; both also match
// errors.ErrConfiguration.
func LoadLibrary(ctx context.Context, dir string, opts ...Option) (*Library, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	log := cfg.logger

	paths, err := listSketchFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: reference directory %q: %w",
			fqerrors.ErrConfiguration, fqerrors.ErrNoReferencesFound, dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %w: no %s files in %q",
			fqerrors.ErrConfiguration, fqerrors.ErrNoReferencesFound, SketchFileExt, dir)
	}
	log.Info("loading references", "dir", dir, "candidates", len(paths))

	// Files are read concurrently; results are consumed in path order so the
	// library order does not depend on scheduling.
	loaded := make([]Reference, len(paths))
	loadErrs := make([]error, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.loadConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			loaded[i], loadErrs[i] = loadReference(path, cfg.params)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lib := &Library{params: cfg.params, byName: make(map[string]int, len(paths))}
	for i, ref := range loaded {
		err := loadErrs[i]
		if err == nil {
			err = lib.add(ref)
		}
		if err != nil {
			log.Warn("skipping reference", "err", &ReferenceLoadError{Path: paths[i], Err: err})
			continue
		}
		log.Info("loaded reference", "name", ref.Name, "hashes", ref.Sketch.Len())
	}

	if len(lib.refs) == 0 {
		return nil, fmt.Errorf("%w: %w: %d candidate(s) in %q",
			fqerrors.ErrConfiguration, fqerrors.ErrNoValidReferences, len(paths), dir)
	}
	log.Info("reference library ready", "references", len(lib.refs), "params", cfg.params.String())
	return lib, nil
}

// listSketchFiles returns the *.sketch files in dir, sorted by name. Symlinks
// are followed; entries that do not resolve to a regular file are ignored.
func listSketchFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) != SketchFileExt {
			continue
		}
		path := filepath.Join(dir, e.Name())
		mode := e.Type()
		if mode&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			mode = info.Mode()
		}
		if mode.IsRegular() {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func loadReference(path string, p Params) (Reference, error) {
	_, sketch, err := ReadSketchFile(path)
	if err != nil {
		return Reference{}, err
	}
	if err := p.checkReference(sketch.params); err != nil {
		return Reference{}, err
	}
	return Reference{Name: ReferenceName(path), Path: path, Sketch: sketch}, nil
}

// ReferenceName derives a display name from a file path: the base name
// without extension, underscores replaced by spaces, title-cased.
//
//	references/phix.sketch       -> "Phix"
//	references/e_coli_k12.sketch -> "E Coli K12"
func ReferenceName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return titleCase(strings.ReplaceAll(stem, "_", " "))
}

// titleCase upper-cases every letter that follows a non-letter and
// lower-cases every other letter.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		isLetter := unicode.IsLetter(r)
		switch {
		case isLetter && !prevLetter:
			r = unicode.ToUpper(r)
		case isLetter:
			r = unicode.ToLower(r)
		}
		prevLetter = isLetter
		b.WriteRune(r)
	}
	return b.String()
}

// Params returns the sample parameters the library was loaded for.
func (l *Library) Params() Params {
	return l.params
}

// Len returns the number of references.
func (l *Library) Len() int {
	return len(l.refs)
}

// Names returns the reference names in library order.
func (l *Library) Names() []string {
	names := make([]string, len(l.refs))
	for i, ref := range l.refs {
		names[i] = ref.Name
	}
	return names
}

// References returns a copy of the reference list in library order.
func (l *Library) References() []Reference {
	return append([]Reference(nil), l.refs...)
}

// Get returns the reference with the given name.
func (l *Library) Get(name string) (Reference, bool) {
	i, ok := l.byName[name]
	if !ok {
		return Reference{}, false
	}
	return l.refs[i], true
}

// IsReferenceLoadError reports whether err is a per-entry load failure.
func IsReferenceLoadError(err error) bool {
	var le *ReferenceLoadError
	return errors.As(err, &le)
}
