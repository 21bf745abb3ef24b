package codefile

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
)

func be32(buf []byte, offset int, v uint32) {
	binary.BigEndian.PutUint32(buf[offset:], v)
}

func le32(buf []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, v)
}

// buildDOL assembles a two section DOL: text at 0x80004000 and data at
// 0x80005000, with a bss chunk overlapping the gap between them.
func buildDOL() []byte {
	buf := make([]byte, 0x130)
	// section 0: text
	be32(buf, 0*4, 0x100)            // offset
	be32(buf, 18*4+0*4, 0x80004000)  // address
	be32(buf, 18*8+0*4, 0x20)        // size
	// section 7: data
	be32(buf, 7*4, 0x120)
	be32(buf, 18*4+7*4, 0x80005000)
	be32(buf, 18*8+7*4, 0x10)
	// bss and entry point
	be32(buf, 18*12, 0x80004800)
	be32(buf, 18*12+4, 0x1000)
	be32(buf, 18*12+8, 0x80004000)
	for i := 0x100; i < 0x130; i++ {
		buf[i] = byte(i)
	}
	return buf
}

func TestParseDOL(t *testing.T) {
	f, err := ParseDOL(buildDOL())
	if err != nil {
		t.Fatalf("ParseDOL failed: %v", err)
	}
	if f.EntryPoint != 0x80004000 {
		t.Errorf("entry point = %#x, want 0x80004000", f.EntryPoint)
	}

	want := []struct {
		address uint64
		size    uint64
		bss     bool
		exec    bool
	}{
		{0x80004000, 0x20, false, true},  // text
		{0x80004800, 0x800, true, false}, // bss up to the data section
		{0x80005000, 0x10, false, false}, // data
		{0x80005010, 0x7f0, true, false}, // bss remainder
	}
	sections := f.SectionsByAddress()
	if len(sections) != len(want) {
		t.Fatalf("expected %d sections, got %d", len(want), len(sections))
	}
	for i, w := range want {
		sec := sections[i]
		if sec.Address != w.address || sec.Size != w.size || sec.IsBSS() != w.bss || sec.Executable != w.exec {
			t.Errorf("section %d = {addr: %#x, size: %#x, bss: %v, exec: %v}, want %+v",
				i, sec.Address, sec.Size, sec.IsBSS(), sec.Executable, w)
		}
	}
	if sections[0].Data[0] != 0x00 || sections[2].Data[0] != 0x20 {
		t.Error("section data not taken from the right file offsets")
	}
}

func TestParseDOLErrors(t *testing.T) {
	if _, err := ParseDOL(make([]byte, 0x40)); err == nil {
		t.Error("expected an error for a truncated header")
	}

	truncated := buildDOL()[:0x128] // data section runs past end
	if _, err := ParseDOL(truncated); err == nil {
		t.Error("expected an error for a section past end of file")
	}
}

// buildREL assembles a REL with one text section and one bss section.
func buildREL(version, bssSize uint32) []byte {
	buf := make([]byte, 0x58)
	be32(buf, 0x0C, 2)    // numSections
	be32(buf, 0x10, 0x40) // sectionInfoOffset
	be32(buf, 0x1C, version)
	be32(buf, 0x20, bssSize)
	// section 0: file offset 0x50 with the executable bit set
	be32(buf, 0x40, 0x51)
	be32(buf, 0x44, 8)
	// section 1: bss
	be32(buf, 0x48, 0)
	be32(buf, 0x4C, 0x100)
	for i := 0x50; i < 0x58; i++ {
		buf[i] = byte(i)
	}
	return buf
}

func TestParseREL(t *testing.T) {
	f, err := ParseREL(buildREL(1, 0x100))
	if err != nil {
		t.Fatalf("ParseREL failed: %v", err)
	}
	if len(f.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(f.Sections))
	}

	text := f.Sections[0]
	if text.Address != 0x50 || text.Size != 8 || !text.Executable || text.IsBSS() {
		t.Errorf("text section = %+v, want file offset 0x50, size 8, executable", text)
	}
	if text.Data[0] != 0x50 {
		t.Error("text data not taken from the masked file offset")
	}

	bss := f.Sections[1]
	if !bss.IsBSS() || bss.Size != 0x100 {
		t.Errorf("bss section = %+v, want bss of size 0x100", bss)
	}
}

func TestParseRELErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated header", make([]byte, 0x20)},
		{"unknown version", buildREL(4, 0x100)},
		{"bss size mismatch", buildREL(1, 0x80)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseREL(tt.data); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

// buildALF assembles an ALF with one initialized section, one bss
// section and a single symbol.
func buildALF(magic, version uint32) []byte {
	var buf []byte
	buf = le32(buf, magic)
	buf = le32(buf, version)
	buf = le32(buf, 0x80004000) // entry point
	buf = le32(buf, 2)          // numSections
	// section 1: 8 initialized bytes
	buf = le32(buf, 0x80004000)
	buf = le32(buf, 8)
	buf = le32(buf, 8)
	buf = append(buf, 1, 2, 3, 4, 5, 6, 7, 8)
	// section 2: bss
	buf = le32(buf, 0x80005000)
	buf = le32(buf, 0)
	buf = le32(buf, 0x100)

	// symbol table: one symbol in section 1
	var sym []byte
	sym = le32(sym, 1) // numSymbols
	sym = le32(sym, 3)
	sym = append(sym, "foo"...)
	sym = le32(sym, 5)
	sym = append(sym, "foo()"...)
	sym = le32(sym, 0x80004000) // address
	sym = le32(sym, 4)          // size
	sym = le32(sym, 0)          // is data
	sym = le32(sym, 1)          // section id

	buf = le32(buf, uint32(len(sym)))
	return append(buf, sym...)
}

func TestParseALF(t *testing.T) {
	f, err := ParseALF(buildALF(alfMagic, alfVersion))
	if err != nil {
		t.Fatalf("ParseALF failed: %v", err)
	}
	if f.EntryPoint != 0x80004000 {
		t.Errorf("entry point = %#x, want 0x80004000", f.EntryPoint)
	}
	if len(f.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(f.Sections))
	}

	text := f.Sections[0]
	if text.Address != 0x80004000 || text.Size != 8 || text.IsBSS() {
		t.Errorf("section 1 = %+v, want 8 initialized bytes at 0x80004000", text)
	}
	if len(text.Symbols) != 1 {
		t.Fatalf("expected 1 symbol, got %d", len(text.Symbols))
	}
	sym := text.Symbols[0]
	if sym.RawName != "foo" || sym.DemangledName != "foo()" || sym.Address != 0x80004000 || sym.Size != 4 || sym.IsData {
		t.Errorf("symbol = %+v", sym)
	}

	bss := f.Sections[1]
	if !bss.IsBSS() || bss.Address != 0x80005000 || bss.Size != 0x100 {
		t.Errorf("section 2 = %+v, want bss of size 0x100 at 0x80005000", bss)
	}
}

func TestParseALFErrors(t *testing.T) {
	t.Run("wrong magic", func(t *testing.T) {
		_, err := ParseALF(buildALF(0xdeadbeef, alfVersion))
		if !errors.Is(err, ErrInvalidMagic) {
			t.Errorf("error = %v, want ErrInvalidMagic", err)
		}
	})
	t.Run("wrong version", func(t *testing.T) {
		_, err := ParseALF(buildALF(alfMagic, 105))
		if !errors.Is(err, ErrInvalidVersion) {
			t.Errorf("error = %v, want ErrInvalidVersion", err)
		}
	})
	t.Run("symbol table size mismatch", func(t *testing.T) {
		data := buildALF(alfMagic, alfVersion)
		if _, err := ParseALF(data[:len(data)-1]); err == nil {
			t.Error("expected an error for a short symbol table")
		}
	})
}

func TestParseUnknownExtension(t *testing.T) {
	_, err := Parse(nil, ".elf")
	if !errors.Is(err, ErrUnknownExtension) {
		t.Errorf("error = %v, want ErrUnknownExtension", err)
	}
}
