package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"clawlink/internal/config"
	"clawlink/internal/version"
	"clawlink/pkg/tokens"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			dd, err := dataDir()
			if err != nil {
				return err
			}
			if err := dd.Ensure(); err != nil {
				return err
			}
			path = dd.ConfigPath()
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		cfg := config.Default()
		if gatewayURL != "" {
			cfg.GatewayURL = gatewayURL
		}
		if token != "" {
			cfg.Token = token
		}
		if err := cfg.Save(path); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if damagedToken(cfg.Token) {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: token checksum does not match, it may be truncated or mistyped")
		}

		redacted := *cfg
		redacted.Token = tokens.Display(cfg.Token)

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(&redacted)
	},
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.GetBuildInfo()
		out := cmd.OutOrStdout()

		if versionJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		fmt.Fprintf(out, "clawlink %s\n", version.Full())
		if info.BuildDate != "unknown" {
			fmt.Fprintf(out, "Build date: %s\n", info.BuildDate)
		}
		fmt.Fprintf(out, "Go version: %s (%s)\n", info.GoVersion, info.Platform)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print as JSON")
}
