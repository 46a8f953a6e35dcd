package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"autorouter/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config to .autorouter/config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := GetRootDir()
		path := filepath.Join(config.DataDir(dir), "config.yaml")

		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.EnsureDataDir(dir); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config")
}
