package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/daios-ai/momoscript"
)

// config is momoscript.toml's shape, ported in spirit from
// vovakirdan-surge/cmd/surge/project_manifest.go's project manifest loader.
// A project has no manifest requirement beyond what's declared: [packs]
// maps pack ids to pack directories and [compile] carries default mode
// flags, both optional.
type config struct {
	Packs   map[string]string `toml:"packs"`
	Compile compileConfig     `toml:"compile"`
}

type compileConfig struct {
	TypstMode            bool   `toml:"typst_mode"`
	JoinContinuationWith string `toml:"join_continuation_with"` // "newline" | "space"
}

const configFileName = "momoscript.toml"

// findConfig walks upward from startDir looking for momoscript.toml, the
// same upward-search shape as findSurgeToml.
func findConfig(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// loadConfig loads momoscript.toml near startDir, if one exists. A missing
// file is not an error: callers fall back to momoscript.ModeFlags{} zero
// value and no packs.
func loadConfig(startDir string) (*config, string, error) {
	path, ok, err := findConfig(startDir)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return &config{}, "", nil
	}
	var cfg config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, "", fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	return &cfg, path, nil
}

func (c compileConfig) joinMode() momoscript.JoinMode {
	if strings.EqualFold(strings.TrimSpace(c.JoinContinuationWith), "space") {
		return momoscript.JoinSpace
	}
	return momoscript.JoinNewline
}
