package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/daios-ai/momoscript"
	"github.com/daios-ai/momoscript/fspack"
	"github.com/daios-ai/momoscript/internal/applog"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] file.mmt",
	Short: "Compile a MomoScript file to its JSON intermediate representation",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().String("out", "", "output path (default: stdout)")
	compileCmd.Flags().Bool("typst", false, "enable Typst inline-segment mode")
	compileCmd.Flags().String("join", "newline", "continuation join mode (newline|space)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	path := args[0]
	log := applog.WithComponent("cli.compile")

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, cfgPath, err := loadConfig(filepath.Dir(path))
	if err != nil {
		return err
	}
	if cfgPath != "" {
		log.Debug("loaded config", "path", cfgPath)
	}

	typst, _ := cmd.Flags().GetBool("typst")
	join, _ := cmd.Flags().GetString("join")
	mode := momoscript.ModeFlags{
		TypstMode:            typst || cfg.Compile.TypstMode,
		JoinContinuationWith: cfg.Compile.joinMode(),
	}
	if join == "space" {
		mode.JoinContinuationWith = momoscript.JoinSpace
	}

	var reg momoscript.PackRegistry
	if len(cfg.Packs) > 0 {
		r, err := fspack.LoadRegistry(cfg.Packs)
		if err != nil {
			return err
		}
		reg = r
	}

	ast, diags := momoscript.Parse(string(src), mode)
	if fatal := firstFatal(diags); fatal != nil {
		printDiagnostics(cmd, string(src), diags)
		return fmt.Errorf("parse failed: %s", fatal.Message)
	}

	ir, compileDiags := momoscript.Compile(ast, mode, reg)
	diags = append(diags, compileDiags...)
	if ir == nil {
		printDiagnostics(cmd, string(src), diags)
		return fmt.Errorf("compile failed")
	}
	printDiagnostics(cmd, string(src), diags)

	out, err := json.MarshalIndent(ir, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal IR: %w", err)
	}

	outPath, _ := cmd.Flags().GetString("out")
	if outPath == "" {
		_, err = cmd.OutOrStdout().Write(append(out, '\n'))
		return err
	}
	return os.WriteFile(outPath, append(out, '\n'), 0o644)
}

func firstFatal(diags []momoscript.Diagnostic) *momoscript.Diagnostic {
	for i := range diags {
		if !diags[i].Warning {
			return &diags[i]
		}
	}
	return nil
}

func printDiagnostics(cmd *cobra.Command, src string, diags []momoscript.Diagnostic) {
	colorFlag, _ := cmd.Root().PersistentFlags().GetString("color")
	useColor := colorFlag == "on" || (colorFlag == "auto" && isTerminal(os.Stderr))
	warn := color.New(color.FgYellow).SprintFunc()
	fatal := color.New(color.FgRed, color.Bold).SprintFunc()
	for _, d := range diags {
		label := "error"
		render := fatal
		if d.Warning {
			label = "warning"
			render = warn
		}
		if useColor {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", render(label), d.Error())
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", label, d.Error())
		}
	}
}
