// Package configutil loads json5 configuration files with optional
// machine-local overrides kept next to the base file.
package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// localVariant derives the override filename: config.json5 becomes
// config.local.json5. Files without an extension get ".local" appended.
func localVariant(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + ".local"
	}
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

// decode reads and unmarshals one file. The false return means the
// file is absent or empty, which callers treat as "nothing to merge".
func decode[T any](path string, out *T) (bool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(raw) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(raw, out)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", path, err)
	}
	return true, nil
}

// ReadConfig loads a json5 config file and, when one exists, merges a
// machine-local override on top (local values win). os.ErrNotExist
// comes back when neither file is present.
func ReadConfig[T any](name string) (T, error) {
	var config T

	foundBase, err := decode(name, &config)
	if err != nil {
		return config, err
	}

	var override T
	localPath := localVariant(name)
	foundLocal, err := decode(localPath, &override)
	if err != nil {
		return config, err
	}
	if foundLocal {
		err = mergo.Merge(&config, override, mergo.WithOverride)
		if err != nil {
			return config, fmt.Errorf("merging %s: %w", localPath, err)
		}
		slog.Info("applied local config overrides", "path", localPath)
	}

	if !foundBase && !foundLocal {
		return config, os.ErrNotExist
	}
	return config, nil
}

// ReadRecursively walks from the working directory up toward the
// filesystem root looking for the named config file, so tests and
// tools find the repo's config no matter which subdirectory they run
// from.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	dir, err := os.Getwd()
	if err != nil {
		return zero, err
	}

	for {
		config, err := ReadConfig[T](filepath.Join(dir, name))
		if err == nil {
			return config, nil
		}
		if !os.IsNotExist(err) {
			return zero, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return zero, os.ErrNotExist
		}
		dir = parent
	}
}
