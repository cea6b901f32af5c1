package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/mdr-library-backend/internal/app"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

var (
	cfgFile string
	cfg     app.Config
	log     *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:           "mdr",
	Short:         "Versioned metadata library service",
	Long:          `Serves library items (terms, templates) through their Draft/Final/Retired lifecycle with a full audit trail.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		boot, err := logger.New(os.Getenv("MDR_LOG_MODE"))
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		loaded, err := app.LoadConfig(boot, cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		if cfg.LogMode != os.Getenv("MDR_LOG_MODE") {
			if l, err := logger.New(cfg.LogMode); err == nil {
				boot = l
			}
		}
		log = boot
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml/toml/json); MDR_* environment variables take precedence")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mdr:", err)
		os.Exit(1)
	}
}
