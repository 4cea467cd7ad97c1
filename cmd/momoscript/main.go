// Command momoscript compiles .mmt scripts to the MomoScript IR and
// validates pack directories, following the cobra root-command shape of
// vovakirdan-surge/cmd/surge/main.go.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "momoscript",
	Short: "MomoScript parser, compiler and pack toolchain",
	Long:  `momoscript turns .mmt scripts into the yuzutalk-shaped JSON IR and validates character pack directories.`,
}

func main() {
	rootCmd.Version = version

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(validatePackCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize diagnostics (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
