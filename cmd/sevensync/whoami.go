package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sevensync/sevensync/internal/config"
	"github.com/sevensync/sevensync/internal/sevenshifts"
	"github.com/sevensync/sevensync/internal/ui"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the identity behind the configured API token",
	Long: `Query the 7shifts API for the identity associated with the configured
access token and print it. Useful for verifying credentials before a sync.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := cfg.RequireToken(); err != nil {
			return err
		}

		var opts []sevenshifts.Option
		if cfg.BaseURL != "" {
			opts = append(opts, sevenshifts.WithBaseURL(cfg.BaseURL))
		}
		client := sevenshifts.New(cfg.APIToken, opts...)

		identity, err := client.Whoami(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to query identity: %w", err)
		}

		fmt.Printf("%s Token is valid\n", ui.RenderPass("✓"))
		return yaml.NewEncoder(os.Stdout).Encode(identity)
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
