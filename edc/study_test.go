package edc

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"acrf/common"
)

const payload = `{
  "visits": [{"id": 1, "name": "Screening", "order": 1}],
  "forms": [{"id": 10, "name": "Demographics", "page": 3, "order": 1}],
  "bindings": [{"parent": 1, "children": [10]}]
}`

func TestDecode(t *testing.T) {
	s, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(s.Visits) != 1 || len(s.Forms) != 1 || len(s.Bindings) != 1 {
		t.Fatalf("Decode() = %+v", s)
	}
	if got := s.FormMap()[10].Page; got != 3 {
		t.Errorf("form page = %d, want 3", got)
	}
	if got := s.VisitMap()[1].Name; got != "Screening" {
		t.Errorf("visit name = %s, want Screening", got)
	}

	data, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	again, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode(Encode()) error = %v", err)
	}
	if !reflect.DeepEqual(s, again) {
		t.Errorf("Decode(Encode()) = %+v, want %+v", again, s)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		reason  string
	}{
		{name: "malformed", payload: `{"visits": [`, reason: "malformed"},
		{name: "unknown field", payload: `{"visit": []}`, reason: "malformed"},
		{name: "duplicate visit", payload: `{"visits": [{"id": 1}, {"id": 1}]}`, reason: "duplicate visit id 1"},
		{name: "duplicate form", payload: `{"forms": [{"id": 2, "page": 1}, {"id": 2, "page": 2}]}`, reason: "duplicate form id 2"},
		{name: "bad page", payload: `{"forms": [{"id": 2, "name": "AE", "page": 0}]}`, reason: "invalid page 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("Decode() error = %v, want ConfigError", err)
			}
			if !strings.Contains(ce.Error(), tt.reason) {
				t.Errorf("error = %v, want %s", ce, tt.reason)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "study.json")
	if err := os.WriteFile(path, []byte(`{"forms": [{"id": 1, "page": -1}]}`), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Path != path {
		t.Fatalf("Load() error = %v, want ConfigError with path", err)
	}

	_, err = Load(filepath.Join(dir, "missing.json"))
	if !errors.As(err, &ce) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load() error = %v, want ConfigError wrapping ErrNotExist", err)
	}
}

func TestGroupBindings(t *testing.T) {
	got := GroupBindings([]Pair{{Visit: 5, Form: 1}, {Visit: 2, Form: 1}, {Visit: 5, Form: 3}, {Visit: 2, Form: 0}})
	want := []Binding{
		{Parent: 5, Children: []int{1, 3}},
		{Parent: 2, Children: []int{1, 0}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GroupBindings() = %v, want %v", got, want)
	}
	if got := GroupBindings(nil); got != nil {
		t.Errorf("GroupBindings(nil) = %v, want nil", got)
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()

	xlsx := filepath.Join(dir, "export.xlsx")
	f, err := os.Create(xlsx)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for _, name := range []string{"[Content_Types].xml", "xl/workbook.xml"} {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte("<x/>"))
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	als := filepath.Join(dir, "als.xml")
	if err := os.WriteFile(als, []byte(`<?xml version="1.0"?><Workbook xmlns="urn:schemas-microsoft-com:office:spreadsheet"/>`), 0644); err != nil {
		t.Fatal(err)
	}
	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("visits and forms"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path    string
		want    common.SourceKind
		wantErr bool
	}{
		{path: xlsx, want: common.SourceKindEcollect},
		{path: als, want: common.SourceKindRave},
		{path: text, wantErr: true},
		{path: filepath.Join(dir, "missing"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			got, err := Detect(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Detect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}
