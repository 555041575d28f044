// Package renamer moves downloaded attachments into classified and
// unclassified partitions, renaming classified files from the metadata
// catalog.
package renamer

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/Veraticus/sortie/internal/metadata"
	"github.com/Veraticus/sortie/internal/model"
	"github.com/bmatcuk/doublestar/v4"
)

// Default partition directory names.
const (
	DefaultClassifiedDir   = "clasificados"
	DefaultUnclassifiedDir = "no_clasificados"
)

// ErrSourceDirMissing is returned when the directory to scan does not exist.
var ErrSourceDirMissing = errors.New("source directory does not exist")

// Options controls a renaming pass.
type Options struct {
	// Progress is called after each file is handled.
	Progress        func(done, total int)
	ClassifiedDir   string
	UnclassifiedDir string
	// Ignore holds doublestar patterns matched against the base name. Matching
	// files are left where they are.
	Ignore []string
	// Lowercase folds the stem before code extraction. The destination name
	// uses the catalog code, not the original casing.
	Lowercase bool
}

// DefaultOptions returns lowercase lookup and the default partition names.
func DefaultOptions() Options {
	return Options{
		ClassifiedDir:   DefaultClassifiedDir,
		UnclassifiedDir: DefaultUnclassifiedDir,
		Lowercase:       true,
	}
}

// Result is the outcome of a renaming pass.
type Result struct {
	Records     []model.RenameRecord
	Diagnostics []model.Diagnostic
}

// Classified counts records moved into the classified partition.
func (r Result) Classified() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Classified {
			n++
		}
	}
	return n
}

// Renamer renames files using a metadata catalog.
type Renamer struct {
	catalog *metadata.Catalog
	opts    Options
}

// New creates a renamer. Empty partition names fall back to the defaults.
func New(catalog *metadata.Catalog, opts Options) (*Renamer, error) {
	if opts.ClassifiedDir == "" {
		opts.ClassifiedDir = DefaultClassifiedDir
	}
	if opts.UnclassifiedDir == "" {
		opts.UnclassifiedDir = DefaultUnclassifiedDir
	}
	if opts.ClassifiedDir == opts.UnclassifiedDir {
		return nil, fmt.Errorf("classified and unclassified partitions must differ: %q", opts.ClassifiedDir)
	}
	for _, pattern := range opts.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid ignore pattern %q", pattern)
		}
	}
	return &Renamer{catalog: catalog, opts: opts}, nil
}

// LookupCode returns the catalog code of a file stem: the text before the
// first whitespace or hyphen, trimmed.
//
// This intentionally differs from taxonomy.ClassificationCode, which splits
// on a single space only.
func LookupCode(stem string) string {
	i := strings.IndexFunc(stem, func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})
	if i < 0 {
		return strings.TrimSpace(stem)
	}
	return strings.TrimSpace(stem[:i])
}

// Plan computes the rename record for a file name without touching disk.
func (r *Renamer) Plan(name string) model.RenameRecord {
	stem, ext := splitExt(name)

	lookup := stem
	if r.opts.Lowercase {
		lookup = strings.ToLower(stem)
	}

	code := LookupCode(lookup)
	if code != "" {
		if entry, ok := r.catalog.Lookup(code); ok {
			return model.RenameRecord{
				OriginalName: name,
				NewName:      fmt.Sprintf("%s - %s%s", entry.Code, entry.FileTitle(), ext),
				Partition:    r.opts.ClassifiedDir,
				Classified:   true,
			}
		}
	}

	return model.RenameRecord{
		OriginalName: name,
		NewName:      name,
		Partition:    r.opts.UnclassifiedDir,
	}
}

// RenameAll moves every regular file directly inside dir into one of the two
// partitions. Per-file failures are reported as diagnostics and do not stop
// the batch. A missing dir is returned as ErrSourceDirMissing before anything
// is changed.
func (r *Renamer) RenameAll(dir string) (Result, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", ErrSourceDirMissing, dir)
		}
		return Result{}, fmt.Errorf("failed to stat source directory: %w", err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s is not a directory", ErrSourceDirMissing, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read source directory: %w", err)
	}

	for _, partition := range []string{r.opts.ClassifiedDir, r.opts.UnclassifiedDir} {
		if err := os.MkdirAll(filepath.Join(dir, partition), 0750); err != nil {
			return Result{}, fmt.Errorf("failed to create partition %s: %w", partition, err)
		}
	}

	var result Result
	files := r.collectFiles(dir, entries, &result)

	for i, name := range files {
		record := r.Plan(name)
		if err := r.move(dir, record); err != nil {
			slog.Error("Failed to move file", "file", name, "partition", record.Partition, "error", err)
			result.Diagnostics = append(result.Diagnostics, model.Diagnostic{
				Kind:    model.DiagFileError,
				Subject: name,
				Message: "file could not be moved",
				Err:     err,
			})
		} else {
			slog.Info("Moved file", "file", name, "new_name", record.NewName, "partition", record.Partition)
			result.Records = append(result.Records, record)
		}

		if r.opts.Progress != nil {
			r.opts.Progress(i+1, len(files))
		}
	}

	return result, nil
}

func (r *Renamer) collectFiles(dir string, entries []os.DirEntry, result *Result) []string {
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || r.ignored(name) {
			continue
		}

		// Stat follows symlinks so a link to a regular file is processed.
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("Skipping unreadable entry", "file", name, "error", err)
			result.Diagnostics = append(result.Diagnostics, model.Diagnostic{
				Kind:    model.DiagFileError,
				Subject: name,
				Message: "file could not be read",
				Err:     err,
			})
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, name)
	}
	return files
}

func (r *Renamer) move(dir string, record model.RenameRecord) error {
	src := filepath.Join(dir, record.OriginalName)
	dst := filepath.Join(dir, record.Partition, record.NewName)

	if _, err := os.Lstat(dst); err == nil {
		slog.Info("Destination exists, replacing", "path", dst)
		if err := os.Remove(dst); err != nil {
			return fmt.Errorf("failed to remove existing destination: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check destination: %w", err)
	}

	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}
	return nil
}

func (r *Renamer) ignored(name string) bool {
	for _, pattern := range r.opts.Ignore {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// splitExt splits a name into stem and extension. A leading dot does not
// start an extension, so ".hidden" has no extension.
func splitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	if ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}
