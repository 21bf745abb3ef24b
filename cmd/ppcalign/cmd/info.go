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
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gecko-re/ppcalign/pkg/codefile"
)

func init() {
	rootCmd.AddCommand(infoCmd)
}

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:           "info <FILE>",
	Short:         "Display section layout of a code file (DOL, REL, ALF)",
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {

		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}
		color.NoColor = !viper.GetBool("color")

		f, err := codefile.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to parse %s: %v", args[0], err)
		}

		if f.EntryPoint != 0 {
			fmt.Printf("Entry Point: %s\n\n", color.New(color.Bold).Sprintf("%#x", f.EntryPoint))
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "SECTION\tADDRESS\tSIZE\t\tTYPE\tSYMBOLS\n")
		for i, sec := range f.SectionsByAddress() {
			kind := "data"
			switch {
			case sec.IsBSS():
				kind = color.HiBlackString("bss")
			case sec.Executable:
				kind = color.GreenString("text")
			}
			symbols := ""
			if len(sec.Symbols) > 0 {
				symbols = fmt.Sprintf("%d", len(sec.Symbols))
			}
			fmt.Fprintf(w, "%d\t%08x\t%#x\t(%s)\t%s\t%s\n",
				i, sec.Address, sec.Size, humanize.Bytes(sec.Size), kind, symbols)
		}

		return w.Flush()
	},
}
