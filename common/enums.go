// Package common keeps enums shared by configuration and processing packages,
// so that config does not have to import processing code and vice versa.
package common

//go:generate go run github.com/abice/go-enum@v0.9.2 --marshal --names

// Format of EDC configuration export used as source of visit/form bindings.
// ENUM(ecollect, rave)
type SourceKind int

// Way a pipeline step is carried out: by built-in code or by external
// program.
// ENUM(builtin, external)
type RendererKind int

func (r RendererKind) IsExternal() bool {
	return r == RendererKindExternal
}
