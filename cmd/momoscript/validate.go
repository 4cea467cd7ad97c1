package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daios-ai/momoscript/fspack"
)

var validatePackCmd = &cobra.Command{
	Use:   "validate-pack [flags] dir",
	Short: "Validate a pack directory's manifest, aliases and asset references",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidatePack,
}

func runValidatePack(cmd *cobra.Command, args []string) error {
	if err := fspack.Validate(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
	return nil
}
