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
	AlignCmd.AddCommand(dataCmd)
	dataCmd.Flags().Int64P("seed", "s", 0, "random sampling seed (0 picks one from the clock)")
	viper.BindPFlag("align.data.seed", dataCmd.Flags().Lookup("seed"))
}

// dataCmd represents the align data command
var dataCmd = &cobra.Command{
	Use:   "data <FILE1> <FILE2>",
	Short: "Infer an address map by Monte Carlo matching of section bytes",
	Long: heredoc.Doc(`
		Compares the raw bytes of two versions of a code file and prints a
		rough piecewise address map for each initialized section. The output
		is a starting point for a hand-verified map, not gospel. bss sections
		carry no bytes to compare; use 'align xrefs' for those.`),
	Example: heredoc.Doc(`
		# Diff two regional builds of a DOL
		❯ ppcalign align data main_p1.dol main_p2.dol
		# Reproducible run
		❯ ppcalign align data --seed 42 main_p1.dol main_e1.alf`),
	Args:          cobra.ExactArgs(2),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {

		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}

		return align.Data(&align.DataConfig{
			File1:   args[0],
			File2:   args[1],
			Seed:    viper.GetInt64("align.data.seed"),
			Verbose: viper.GetBool("verbose"),
		})
	},
}
