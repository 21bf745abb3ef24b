// Package codefile loads GameCube/Wii executable containers: DOL flat
// loader images, REL relocatable modules and ALF images with embedded
// symbol tables. Each loads into the same flat section view so the
// alignment tooling doesn't care which container it came from.
package codefile

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownExtension is returned by Open/Parse for file types the
// package doesn't recognize.
var ErrUnknownExtension = errors.New("unknown code file extension")

// Section is one contiguous region of the loaded image. A nil Data
// with a nonzero Size marks a zero-initialized (bss) region.
type Section struct {
	Address    uint64
	Size       uint64
	Data       []byte
	Executable bool
	Symbols    []Symbol // ALF only
}

// IsBSS reports whether the section is zero-initialized.
func (s *Section) IsBSS() bool {
	return s.Data == nil
}

// IsNull reports whether the section is an empty placeholder.
func (s *Section) IsNull() bool {
	return s.Size == 0
}

// Symbol is an ALF symbol table entry.
type Symbol struct {
	Address       uint64
	Size          uint64
	RawName       string
	DemangledName string
	IsData        bool
}

// File is a loaded code file.
type File struct {
	Sections   []*Section
	EntryPoint uint64
}

// SectionsByAddress returns the sections sorted ascending by load
// address.
func (f *File) SectionsByAddress() []*Section {
	out := make([]*Section, len(f.Sections))
	copy(out, f.Sections)
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Open reads and parses a code file, dispatching on its extension.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, filepath.Ext(path))
}

// Parse parses code file data given its file extension (e.g. ".dol").
func Parse(data []byte, ext string) (*File, error) {
	switch strings.ToLower(ext) {
	case ".dol":
		return ParseDOL(data)
	case ".rel":
		return ParseREL(data)
	case ".alf":
		return ParseALF(data)
	default:
		return nil, errors.Wrap(ErrUnknownExtension, ext)
	}
}
