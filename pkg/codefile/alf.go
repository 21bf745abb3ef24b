package codefile

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidMagic means the file doesn't start with the ALF magic.
	ErrInvalidMagic = errors.New("invalid ALF magic")
	// ErrInvalidVersion means the ALF version isn't the one and only
	// known revision.
	ErrInvalidVersion = errors.New("unsupported ALF version")
)

const (
	alfMagic   uint32 = 0x464F4252 // "RBOF"
	alfVersion uint32 = 104
)

// ParseALF parses a .alf image (little-endian) including its embedded
// symbol table. Sections with a stored size of zero are bss.
func ParseALF(data []byte) (*File, error) {
	if len(data) < 16 {
		return nil, errors.Errorf("ALF: file too small (%d bytes)", len(data))
	}

	magic := binary.LittleEndian.Uint32(data[0:])
	version := binary.LittleEndian.Uint32(data[4:])
	entryPoint := binary.LittleEndian.Uint32(data[8:])
	numSections := binary.LittleEndian.Uint32(data[12:])

	if magic != alfMagic {
		return nil, errors.Wrapf(ErrInvalidMagic, "0x%08x", magic)
	}
	if numSections < 1 || numSections >= 32 {
		return nil, errors.Errorf("ALF: unlikely number of sections (%d)", numSections)
	}
	if version != alfVersion {
		return nil, errors.Wrapf(ErrInvalidVersion, "%d", version)
	}

	f := &File{EntryPoint: uint64(entryPoint)}

	// Sections table: header triplets interleaved with section data.
	var all []*Section
	offset := uint64(16)
	for i := uint32(0); i < numSections; i++ {
		if offset+12 > uint64(len(data)) {
			return nil, errors.New("ALF: sections table extends past end of file")
		}
		address := uint64(binary.LittleEndian.Uint32(data[offset:]))
		storedSize := uint64(binary.LittleEndian.Uint32(data[offset+4:]))
		virtualSize := uint64(binary.LittleEndian.Uint32(data[offset+8:]))
		offset += 12

		sec := &Section{Address: address, Size: virtualSize}
		if storedSize > 0 {
			if offset+storedSize > uint64(len(data)) {
				return nil, errors.Errorf("ALF: section %d extends past end of file", i)
			}
			sec.Data = data[offset : offset+storedSize]
			offset += storedSize
		}

		all = append(all, sec)
		if !sec.IsNull() {
			f.Sections = append(f.Sections, sec)
		}
	}

	if err := parseALFSymbols(data, offset, all); err != nil {
		return nil, err
	}

	return f, nil
}

func parseALFSymbols(data []byte, offset uint64, sections []*Section) error {
	if offset+8 > uint64(len(data)) {
		return errors.New("ALF: symbol table header extends past end of file")
	}
	tableSize := uint64(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	if tableSize != uint64(len(data))-offset {
		return errors.Errorf("ALF: symbol table size %#x doesn't reach end of file", tableSize)
	}
	numSymbols := binary.LittleEndian.Uint32(data[offset:])
	offset += 4

	readString := func() (string, error) {
		if offset+4 > uint64(len(data)) {
			return "", errors.New("ALF: truncated symbol name")
		}
		length := uint64(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
		if offset+length > uint64(len(data)) {
			return "", errors.New("ALF: truncated symbol name")
		}
		s := string(data[offset : offset+length])
		offset += length
		return s, nil
	}

	for i := uint32(0); i < numSymbols; i++ {
		rawName, err := readString()
		if err != nil {
			return err
		}
		demangledName, err := readString()
		if err != nil {
			return err
		}
		if offset+16 > uint64(len(data)) {
			return errors.New("ALF: truncated symbol entry")
		}
		address := uint64(binary.LittleEndian.Uint32(data[offset:]))
		size := uint64(binary.LittleEndian.Uint32(data[offset+4:]))
		isData := binary.LittleEndian.Uint32(data[offset+8:])
		sectionID := binary.LittleEndian.Uint32(data[offset+12:])
		offset += 16

		if sectionID < 1 || uint64(sectionID) > uint64(len(sections)) {
			return errors.Errorf("ALF: symbol %q has bad section id %d", rawName, sectionID)
		}
		sec := sections[sectionID-1]
		if address < sec.Address || address+size > sec.Address+sec.Size {
			return errors.Errorf("ALF: symbol %q falls outside its section", rawName)
		}

		sec.Symbols = append(sec.Symbols, Symbol{
			Address:       address,
			Size:          size,
			RawName:       rawName,
			DemangledName: demangledName,
			IsData:        isData != 0,
		})
	}

	return nil
}
