package addrmap

import (
	"bufio"
	"io"
	"regexp"
	"strconv"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

var (
	emptyLineRegex = regexp.MustCompile(`^\s*$`)
	commentRegex   = regexp.MustCompile(`^\s*#`)
	sectionRegex   = regexp.MustCompile(`^\s*\[([a-zA-Z0-9_.]+)\]$`)
	extendRegex    = regexp.MustCompile(`^\s*extend ([a-zA-Z0-9_.]+)\s*(#.*)?$`)
	mappingRegex   = regexp.MustCompile(`^\s*([a-fA-F0-9]{8})-((?:[a-fA-F0-9]{8})|\*)\s*:\s*([-+])0x([a-fA-F0-9]+)\s*(#.*)?$`)
)

// Load parses an address map file into a map of version name to Mapper.
// The format is line based: '[version]' headers, 'extend NAME' to
// derive from another version, and '01234567-89abcdef: +0xN' mapping
// lines ('*' as the upper bound means 0xffffffff). A 'default'
// identity version is always present.
func Load(r io.Reader) (map[string]*Mapper, error) {
	mappers := map[string]*Mapper{
		"default": {Name: "default"},
	}

	var current *Mapper

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if emptyLineRegex.MatchString(line) || commentRegex.MatchString(line) {
			continue
		}

		if m := sectionRegex.FindStringSubmatch(line); m != nil {
			name := m[1]
			if _, dupe := mappers[name]; dupe {
				return nil, errors.Errorf("address map contains duplicate version name %s", name)
			}
			current = &Mapper{Name: name}
			mappers[name] = current
			continue
		}

		if current != nil {
			if m := extendRegex.FindStringSubmatch(line); m != nil {
				base, found := mappers[m[1]]
				if !found {
					return nil, errors.Errorf("version %s extends unknown version %s", current.Name, m[1])
				}
				if current.Base != nil {
					return nil, errors.Errorf("version %s already extends a version", current.Name)
				}
				current.Base = base
				continue
			}

			if m := mappingRegex.FindStringSubmatch(line); m != nil {
				start, err := strconv.ParseUint(m[1], 16, 64)
				if err != nil {
					return nil, err
				}
				end := uint64(0xffffffff)
				if m[2] != "*" {
					if end, err = strconv.ParseUint(m[2], 16, 64); err != nil {
						return nil, err
					}
				}
				delta, err := strconv.ParseInt(m[4], 16, 64)
				if err != nil {
					return nil, err
				}
				if m[3] == "-" {
					delta = -delta
				}
				if err := current.AddMapping(start, end, delta); err != nil {
					return nil, errors.Wrapf(err, "version %s", current.Name)
				}
				continue
			}
		}

		log.Warnf("unrecognized line in address map file: %s", line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return mappers, nil
}
