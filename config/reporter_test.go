package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestReport(t *testing.T) (*Report, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.zip")
	r, err := (&ReporterConfig{Destination: path}).Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return r, path
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer zr.Close()

	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Open(%s) error = %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("ReadAll(%s) error = %v", f.Name, err)
		}
		files[f.Name] = string(data)
	}
	return files
}

func TestReportClose_Archive(t *testing.T) {
	r, path := newTestReport(t)

	src := t.TempDir()
	stored := filepath.Join(src, "bookmark.json")
	if err := os.WriteFile(stored, []byte("[]"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	workspace := filepath.Join(src, "workspace")
	if err := os.MkdirAll(workspace, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, "toc.html"), []byte("<html/>"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	r.Store("bookmark.json", stored)
	r.StoreData("graph.txt", []byte("objects"))
	if err := r.StoreCopy("workspace", workspace); err != nil {
		t.Fatalf("StoreCopy() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	files := readArchive(t, path)
	want := map[string]string{
		"bookmark.json":      "[]",
		"graph.txt":          "objects",
		"workspace/toc.html": "<html/>",
	}
	for name, content := range want {
		if got, ok := files[name]; !ok || got != content {
			t.Errorf("archive[%s] = %q (present %v), want %q", name, got, ok, content)
		}
	}
	for _, line := range []string{"\tdata\tgraph.txt\t", "\tlive\tbookmark.json\t", "\tsnapshot\tworkspace\t"} {
		if !strings.Contains(files["MANIFEST"], line) {
			t.Errorf("MANIFEST does not contain %q:\n%s", line, files["MANIFEST"])
		}
	}
}

func TestReportStore_Conflict(t *testing.T) {
	r, _ := newTestReport(t)
	defer r.Close()

	r.Store("final.log", "acrf.log")
	// same file again is fine
	r.Store("final.log", "acrf.log")

	defer func() {
		if recover() == nil {
			t.Error("Store() over another file did not panic")
		}
	}()
	r.Store("final.log", "other.log")
}

func TestReportClose_RemovesCopies(t *testing.T) {
	r, _ := newTestReport(t)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "toc.pdf"), []byte("%PDF"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	stored := filepath.Join(t.TempDir(), "merged.pdf")
	if err := os.WriteFile(stored, []byte("%PDF"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := r.StoreCopy("workspace", dir); err != nil {
		t.Fatalf("StoreCopy() error = %v", err)
	}
	r.Store("merged.pdf", stored)
	copies := append([]string(nil), r.copies...)
	if len(copies) != 1 {
		t.Fatalf("copies = %v, want exactly one", copies)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(copies[0]); !os.IsNotExist(err) {
		t.Errorf("copy %s still exists after Close", copies[0])
	}
	// originals are never touched
	for _, p := range []string{dir, stored} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("stored path %s removed: %v", p, err)
		}
	}
}

func TestReportStoreCopy_Versioned(t *testing.T) {
	r, _ := newTestReport(t)
	defer r.Close()

	path := filepath.Join(t.TempDir(), "toc.pdf")
	if err := os.WriteFile(path, []byte("v1"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	for range 2 {
		if err := r.StoreCopy("toc.pdf", path); err != nil {
			t.Fatalf("StoreCopy() error = %v", err)
		}
	}
	if len(r.entries) != 2 {
		t.Errorf("entries = %d, want 2", len(r.entries))
	}
}

func TestReportStoreCopy_Missing(t *testing.T) {
	r, _ := newTestReport(t)
	defer r.Close()

	if err := r.StoreCopy("missing", filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("StoreCopy() expected error for missing path")
	}
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
	// all methods are safe on nil report
	r.Store("a", "b")
	r.StoreData("a", nil)
	if err := r.StoreCopy("a", "b"); err != nil {
		t.Errorf("StoreCopy on nil report error = %v", err)
	}
	if r.Name() != "" {
		t.Errorf("Name() = %q, want empty", r.Name())
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
