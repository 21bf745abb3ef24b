package codefile

import (
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"
)

const (
	dolHeaderSize   = 0xE4
	dolNumSections  = 18
	dolTextSections = 7 // sections 0-6 are text, 7-17 are data
)

// ParseDOL parses a .dol flat loader image (big-endian).
//
// The header names one giant bss chunk that overlaps the initialized
// sections; it gets split into the gaps between them so that every
// resulting section is disjoint.
func ParseDOL(data []byte) (*File, error) {
	if len(data) < dolHeaderSize {
		return nil, errors.Errorf("DOL: file too small (%d bytes)", len(data))
	}

	var offsets, addresses, sizes [dolNumSections]uint32
	for i := 0; i < dolNumSections; i++ {
		offsets[i] = binary.BigEndian.Uint32(data[i*4:])
		addresses[i] = binary.BigEndian.Uint32(data[dolNumSections*4+i*4:])
		sizes[i] = binary.BigEndian.Uint32(data[dolNumSections*8+i*4:])
	}
	bssAddress := uint64(binary.BigEndian.Uint32(data[dolNumSections*12:]))
	bssSize := uint64(binary.BigEndian.Uint32(data[dolNumSections*12+4:]))
	entryPoint := uint64(binary.BigEndian.Uint32(data[dolNumSections*12+8:]))

	f := &File{EntryPoint: entryPoint}
	for i := 0; i < dolNumSections; i++ {
		if sizes[i] == 0 {
			continue
		}
		offset, size := uint64(offsets[i]), uint64(sizes[i])
		if offset+size > uint64(len(data)) {
			return nil, errors.Errorf("DOL: section %d extends past end of file", i)
		}
		f.Sections = append(f.Sections, &Section{
			Address:    uint64(addresses[i]),
			Size:       size,
			Data:       data[offset : offset+size],
			Executable: i < dolTextSections,
		})
	}

	sort.Slice(f.Sections, func(i, j int) bool { return f.Sections[i].Address < f.Sections[j].Address })

	// Carve the bss chunk around the initialized sections it overlaps.
	bssEnd := bssAddress + bssSize
	for _, sec := range f.SectionsByAddress() {
		if bssAddress >= bssEnd {
			break
		}
		if bssAddress < sec.Address {
			end := sec.Address
			if bssEnd < end {
				end = bssEnd
			}
			f.Sections = append(f.Sections, &Section{Address: bssAddress, Size: end - bssAddress})
		}
		if bssAddress < sec.Address+sec.Size {
			bssAddress = sec.Address + sec.Size
		}
	}
	if bssAddress < bssEnd {
		f.Sections = append(f.Sections, &Section{Address: bssAddress, Size: bssEnd - bssAddress})
	}

	sort.Slice(f.Sections, func(i, j int) bool { return f.Sections[i].Address < f.Sections[j].Address })

	return f, nil
}
