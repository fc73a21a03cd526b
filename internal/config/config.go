// Package config layers settings from flags, LANDER_* environment variables
// and a .lander.yaml file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "LANDER"
	configFileName = ".lander"
)

// Settings are the resolved configuration values.
type Settings struct {
	Root         string
	Git          string
	Editor       string
	NvimAddress  string
	Format       bool
	LogFile      string
	LogLevel     string
	HistoryLimit int

	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string
}

// flagKeys maps configuration keys to the flags that override them.
var flagKeys = map[string]string{
	"root":          "root",
	"git":           "git",
	"editor":        "editor",
	"nvim_address":  "nvim-address",
	"format":        "format",
	"log_file":      "log-file",
	"log_level":     "log-level",
	"history_limit": "history-limit",
}

// RegisterFlags defines the settings flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("root", "C", "", "Directory the patch paths are relative to (default: current directory).")
	fs.String("git", "git", "git binary used for the strict apply stages.")
	fs.String("editor", "auto", "Editor host: auto, nvim or none.")
	fs.String("nvim-address", "", "Address of a running Neovim (default: $NVIM_LISTEN_ADDRESS).")
	fs.Bool("format", true, "Ask the editor to format patched files before saving.")
	fs.String("log-file", "", "Write JSON logs to this file.")
	fs.String("log-level", "info", "Log level: debug, info, warn or error.")
	fs.Int("history-limit", 20, "Number of undoable patches kept in history.")
	fs.String("config", "", "Read settings from this file instead of .lander.yaml.")
}

// Load resolves the settings. fs must have been registered with
// RegisterFlags and parsed.
func Load(fs *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("git", "git")
	v.SetDefault("editor", "auto")
	v.SetDefault("format", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("history_limit", 20)

	for key, flag := range flagKeys {
		if f := fs.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return Settings{}, err
			}
		}
	}

	root, err := resolveRoot(v.GetString("root"))
	if err != nil {
		return Settings{}, err
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(root)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	// A root set only in the config file still wins over the working
	// directory.
	if fileRoot := v.GetString("root"); fileRoot != "" {
		if root, err = resolveRoot(fileRoot); err != nil {
			return Settings{}, err
		}
	}

	s := Settings{
		Root:         root,
		Git:          v.GetString("git"),
		Editor:       v.GetString("editor"),
		NvimAddress:  v.GetString("nvim_address"),
		Format:       v.GetBool("format"),
		LogFile:      v.GetString("log_file"),
		LogLevel:     v.GetString("log_level"),
		HistoryLimit: v.GetInt("history_limit"),
		ConfigFile:   v.ConfigFileUsed(),
	}
	return s, s.Validate()
}

// Validate checks the values that have a fixed set of choices.
func (s Settings) Validate() error {
	switch s.Editor {
	case "auto", "nvim", "none":
	default:
		return fmt.Errorf("invalid editor %q: want auto, nvim or none", s.Editor)
	}
	if s.HistoryLimit < 1 {
		return fmt.Errorf("invalid history limit %d: must be at least 1", s.HistoryLimit)
	}
	return nil
}

func resolveRoot(root string) (string, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("could not get current working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root %q: %w", root, err)
	}
	return abs, nil
}
