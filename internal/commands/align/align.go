// Package align implements the logic behind the `ppcalign align`
// commands: content-based and xref-based address map inference.
package align

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/gecko-re/ppcalign/internal/utils"
	"github.com/gecko-re/ppcalign/pkg/addrmap"
	"github.com/gecko-re/ppcalign/pkg/align"
	"github.com/gecko-re/ppcalign/pkg/codefile"
)

// DefaultAlignedRangeStart is where the already-aligned region is
// assumed to begin when no explicit range is given: the bottom of the
// PowerPC MEM1 address space.
const DefaultAlignedRangeStart = 0x80000000

// DataConfig configures the content-based aligner command.
type DataConfig struct {
	File1   string
	File2   string
	Seed    int64
	Verbose bool
}

// Data runs the content-based aligner over two code files and prints
// per-section delta range reports to stdout.
func Data(cfg *DataConfig) error {
	fileA, err := codefile.Open(cfg.File1)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %v", cfg.File1, err)
	}
	fileB, err := codefile.Open(cfg.File2)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %v", cfg.File2, err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Debugf("sampling with seed %d", seed)
	rnd := rand.New(rand.NewSource(seed))

	s := spinner.New(spinner.CharSets[38], 100*time.Millisecond)
	s.Prefix = color.BlueString("   • Aligning... ")
	if !cfg.Verbose {
		s.Start()
	}

	var buf bytes.Buffer
	err = align.AlignFiles(rnd, fileA, fileB, &buf)
	s.Stop()
	if err != nil {
		return err
	}

	fmt.Print(buf.String())
	return nil
}

// XrefsConfig configures the xref-based aligner command.
type XrefsConfig struct {
	AddressMap   string
	Xrefs1       string
	Xrefs2       string
	Version1     string
	Version2     string
	TargetRange  string
	AlignedRange string
}

// Xrefs runs the cross-reference aligner and prints the inferred delta
// ranges to stdout.
func Xrefs(cfg *XrefsConfig) error {
	f, err := os.Open(cfg.AddressMap)
	if err != nil {
		return err
	}
	defer f.Close()

	mappers, err := addrmap.Load(f)
	if err != nil {
		return fmt.Errorf("failed to parse address map %s: %v", cfg.AddressMap, err)
	}
	mapper1, found := mappers[cfg.Version1]
	if !found {
		return fmt.Errorf("address map has no version %q", cfg.Version1)
	}
	mapper2, found := mappers[cfg.Version2]
	if !found {
		return fmt.Errorf("address map has no version %q", cfg.Version2)
	}

	graph1, err := align.LoadGraph(cfg.Xrefs1)
	if err != nil {
		return err
	}
	graph2, err := align.LoadGraph(cfg.Xrefs2)
	if err != nil {
		return err
	}

	targetStart, targetEnd, err := utils.ParseAddressRange(cfg.TargetRange)
	if err != nil {
		return err
	}

	alignedStart, alignedEnd := uint64(DefaultAlignedRangeStart), targetStart
	if cfg.AlignedRange != "" {
		if alignedStart, alignedEnd, err = utils.ParseAddressRange(cfg.AlignedRange); err != nil {
			return err
		}
	}

	err = align.AlignByXrefs(&align.XrefConfig{
		Graph1:       graph1,
		Graph2:       graph2,
		Mapper1:      mapper1,
		Mapper2:      mapper2,
		AlignedStart: alignedStart,
		AlignedEnd:   alignedEnd,
		TargetStart:  targetStart,
		TargetEnd:    targetEnd,
	}, os.Stdout)
	if errors.Is(err, align.ErrNoUsableXrefs) {
		log.Warn("no usable xrefs found")
		return nil
	}
	return err
}
