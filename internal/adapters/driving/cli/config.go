package cli

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pagewise/internal/adapters/driven/config/file"
	"github.com/custodia-labs/pagewise/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
	Long: `Settings resolve from the environment, then .env files, then
config.toml in the data directory, then built-in defaults.

API keys are read only from the environment or .env files.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [setting] [value]",
	Short: "Write a setting to config.toml",
	Long: `Writes one setting to config.toml. The setting may be named by its
environment variable (CHUNK_SIZE_TOKENS) or its file key
(chunking.size_tokens). Environment variables still take precedence.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config.toml location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		dir, err := config.ResolveDataDir(dataDirFlag)
		if err != nil {
			return err
		}
		cmd.Println(filepath.Join(dir, file.ConfigFile))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(dataDirFlag)
	if err != nil {
		return err
	}

	settings := cfg.Settings()
	width := 0
	for _, s := range settings {
		width = max(width, len(s.Key))
	}
	for _, s := range settings {
		value := s.Value
		if value == "" {
			value = mutedStyle.Render("-")
		}
		cmd.Printf("%-*s  %s\n", width, s.Key, value)
	}

	if err := cfg.Validate(); err != nil {
		cmd.Println()
		for _, line := range strings.Split(err.Error(), "\n") {
			cmd.Println(errorStyle.Render(line))
		}
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, err := config.SetFileValue(dataDirFlag, args[0], args[1])
	if err != nil {
		return err
	}
	key, _ := config.FileKey(args[0])
	cmd.Printf("Set %s = %s in %s\n", key, args[1], path)
	return nil
}
