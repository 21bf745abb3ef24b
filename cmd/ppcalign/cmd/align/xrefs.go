/*
Copyright © 2021-2025 gecko-re

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package align

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gecko-re/ppcalign/internal/commands/align"
)

func init() {
	AlignCmd.AddCommand(xrefsCmd)
	xrefsCmd.Flags().String("aligned-range", "", "range of addresses (relative to VER1) already correctly aligned (default: 80000000 to the start of RANGE)")
	viper.BindPFlag("align.xrefs.aligned-range", xrefsCmd.Flags().Lookup("aligned-range"))
}

// xrefsCmd represents the align xrefs command
var xrefsCmd = &cobra.Command{
	Use:   "xrefs <ADDR_MAP> <XREFS1> <XREFS2> <VER1> <VER2> <RANGE>",
	Short: "Infer an address map for a section from exported Ghidra xrefs",
	Long: heredoc.Doc(`
		Aligns a section with no comparable byte content (e.g. bss) by looking
		at who references it. For each address in RANGE, the xrefs pointing at
		it from the already-aligned region are translated into VER2's address
		space through the work-in-progress address map; wherever those
		translated origins point in VER2 decides, by majority vote, where the
		address moved to.

		XREFS1/XREFS2 are JSON exports from Ghidra's ExportXrefs.py
		({"to": [from, ...]}), one per version.`),
	Example: heredoc.Doc(`
		# Align a bss range of version P2 using the P1 map
		❯ ppcalign align xrefs nsmbw.map xrefs_p1.json xrefs_p2.json P1 P2 8076a748-8076bd44`),
	Args:          cobra.ExactArgs(6),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {

		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}

		return align.Xrefs(&align.XrefsConfig{
			AddressMap:   args[0],
			Xrefs1:       args[1],
			Xrefs2:       args[2],
			Version1:     args[3],
			Version2:     args[4],
			TargetRange:  args[5],
			AlignedRange: viper.GetString("align.xrefs.aligned-range"),
		})
	},
}
