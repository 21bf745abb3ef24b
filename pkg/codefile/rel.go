package codefile

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const relHeaderSize = 0x40

// ParseREL parses a .rel relocatable module (big-endian).
//
// REL sections have no fixed load address; the section's file offset is
// used as a stable load-relative coordinate instead. The least
// significant bit of the stored file offset distinguishes text from
// data and has to be masked off before use.
func ParseREL(data []byte) (*File, error) {
	if len(data) < relHeaderSize {
		return nil, errors.Errorf("REL: file too small (%d bytes)", len(data))
	}

	numSections := binary.BigEndian.Uint32(data[0x0C:])
	sectionInfoOffset := uint64(binary.BigEndian.Uint32(data[0x10:]))
	version := binary.BigEndian.Uint32(data[0x1C:])
	bssSize := uint64(binary.BigEndian.Uint32(data[0x20:]))

	if version < 1 || version > 3 {
		return nil, errors.Errorf("REL: unknown version (%d)", version)
	}

	f := &File{}
	for i := uint64(0); i < uint64(numSections); i++ {
		entry := sectionInfoOffset + i*8
		if entry+8 > uint64(len(data)) {
			return nil, errors.New("REL: section info table extends past end of file")
		}
		fileOffset := uint64(binary.BigEndian.Uint32(data[entry:]))
		size := uint64(binary.BigEndian.Uint32(data[entry+4:]))

		sec := &Section{Size: size}
		if fileOffset != 0 {
			offset := fileOffset &^ 1
			if offset+size > uint64(len(data)) {
				return nil, errors.Errorf("REL: section %d extends past end of file", i)
			}
			sec.Address = offset
			sec.Data = data[offset : offset+size]
			sec.Executable = fileOffset&1 == 1
		}

		if !sec.IsNull() && sec.IsBSS() && sec.Size != bssSize {
			return nil, errors.Errorf("REL: .bss size doesn't match (expected %#x, found %#x)", bssSize, sec.Size)
		}

		f.Sections = append(f.Sections, sec)
	}

	return f, nil
}
