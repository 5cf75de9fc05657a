package config

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/multierr"

	"acrf/misc"
)

type ReporterConfig struct {
	Destination string `yaml:"destination" sanitize:"path_clean,assure_dir_exists_for_file" validate:"required,filepath"`
}

// Prepare creates empty report. When destination cannot be created the
// archive goes to the temporary directory.
func (conf *ReporterConfig) Prepare() (*Report, error) {
	f, err := os.Create(conf.Destination)
	if err != nil {
		if f, err = os.CreateTemp("", misc.GetAppName()+"-report.*.zip"); err != nil {
			return nil, fmt.Errorf("unable to create report: %w", err)
		}
	}
	return &Report{entries: make(map[string]entry), file: f}, nil
}

type entryKind int

const (
	// live entries are read when report is closed
	kindLive entryKind = iota
	// snapshot entries are copied at the time of the call
	kindSnapshot
	kindData
)

func (k entryKind) String() string {
	return [...]string{"live", "snapshot", "data"}[k]
}

type entry struct {
	kind     entryKind
	original string
	actual   string
	stamp    time.Time
	data     []byte
}

// Report accumulates build artifacts (configuration, logs, workspace,
// document graphs) and packs them into zip archive on Close.
// NOTE: not safe for concurrent use.
type Report struct {
	entries map[string]entry
	file    *os.File
	// copies are temporary directories created by StoreCopy, removed on Close.
	copies []string
}

// Methods below accept nil receiver, nil report means no report was requested.

// Close writes the archive and removes snapshot copies.
func (r *Report) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	err := r.finalize()
	err = multierr.Append(err, r.file.Close())
	for _, dir := range r.copies {
		err = multierr.Append(err, os.RemoveAll(dir))
	}
	r.copies = nil
	return err
}

// Name returns absolute name of the archive.
func (r *Report) Name() string {
	if r == nil || r.file == nil {
		return ""
	}
	return absPath(r.file.Name())
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// add registers entry, names are expected to be unique within the report.
func (r *Report) add(name string, e entry) {
	if old, exists := r.entries[name]; exists && (e.kind != kindLive || old.original != e.original) {
		panic(fmt.Sprintf("report entry [%s] is already taken by %s %q", name, old.kind, old.original))
	}
	r.entries[name] = e
}

// Store registers file or directory to be put into the archive as it is
// at the time of Close.
func (r *Report) Store(name, path string) {
	if r == nil {
		return
	}
	r.add(name, entry{kind: kindLive, original: path, actual: absPath(path)})
}

// StoreData puts data into the archive under the name.
func (r *Report) StoreData(name string, data []byte) {
	if r == nil {
		return
	}
	r.add(name, entry{kind: kindData, data: data, stamp: time.Now()})
}

// StoreCopy snapshots file or directory into temporary location. Repeated
// names get timestamp suffix so the same artifact may be captured at
// different build stages.
func (r *Report) StoreCopy(name, path string) error {
	if r == nil {
		return nil
	}

	e := entry{kind: kindSnapshot, original: path, stamp: time.Now()}
	src, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if _, exists := r.entries[name]; exists {
		name = fmt.Sprintf("%s-%d", name, e.stamp.UnixNano())
	}

	dir, err := os.MkdirTemp("", misc.GetAppName()+"-r-")
	if err != nil {
		return err
	}
	r.copies = append(r.copies, dir)

	switch {
	case info.Mode().IsRegular():
		e.actual = filepath.Join(dir, filepath.Base(src))
		err = copyFile(e.actual, src, info.ModTime())
	case info.IsDir():
		e.actual = dir
		err = walkFiles(src, func(rel string, fi fs.FileInfo) error {
			return copyFile(filepath.Join(dir, rel), filepath.Join(src, rel), fi.ModTime())
		})
	default:
		return fmt.Errorf("unable to copy '%s' into report: not a regular file or directory", path)
	}
	if err != nil {
		return err
	}
	r.add(name, e)
	return nil
}

// walkFiles calls fn for every regular file under root with path relative to
// it, links and special files are skipped.
func walkFiles(root string, fn func(rel string, info fs.FileInfo) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return fn(rel, info)
	})
}

func copyFile(dst, src string, modTime time.Time) (err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err == nil {
		err = out.Sync()
	}
	if err = multierr.Append(err, out.Close()); err != nil {
		return err
	}
	return os.Chtimes(dst, modTime, modTime)
}

func (r *Report) finalize() (err error) {
	arc := zip.NewWriter(r.file)
	defer func() {
		err = multierr.Append(err, arc.Close())
	}()

	now := time.Now()
	names := slices.Sorted(maps.Keys(r.entries))

	var manifest bytes.Buffer
	for _, name := range names {
		e := r.entries[name]
		stamp := e.stamp
		if stamp.IsZero() {
			stamp = now
		}
		fmt.Fprintf(&manifest, "%s\t%s\t%s\t%s : %s\n", stamp.UTC().Format(time.UnixDate), e.kind, name, e.original, e.actual)
	}
	if err := addFile(arc, "MANIFEST", now, &manifest); err != nil {
		return err
	}

	for _, name := range names {
		e := r.entries[name]
		if e.kind == kindData {
			if err := addFile(arc, name, e.stamp, bytes.NewReader(e.data)); err != nil {
				return err
			}
			continue
		}
		info, err := os.Stat(e.actual)
		if err != nil {
			// absent files are skipped
			continue
		}
		if info.IsDir() {
			err = walkFiles(e.actual, func(rel string, fi fs.FileInfo) error {
				return addPath(arc, filepath.ToSlash(filepath.Join(name, rel)), filepath.Join(e.actual, rel), fi.ModTime())
			})
		} else if info.Mode().IsRegular() {
			err = addPath(arc, name, e.actual, info.ModTime())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func addPath(arc *zip.Writer, name, path string, modTime time.Time) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return addFile(arc, name, modTime, f)
}

func addFile(arc *zip.Writer, name string, modTime time.Time, src io.Reader) error {
	w, err := arc.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modTime})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
