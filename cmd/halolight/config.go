package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/halolight/internal/appconfig"
	"pkt.systems/pslog"
)

const redacted = "<redacted>"

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or initialize the halolight config",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var path string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := appconfig.WriteDefault(path, overwrite)
			if err != nil {
				return err
			}
			pslog.Ctx(cmd.Context()).Info("config written", "path", written)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "target path (defaults to ~/.halolight/config.yaml)")
	cmd.Flags().BoolVar(&overwrite, "force", false, "overwrite an existing config")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var path string
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config after file and environment overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(path)
			if err != nil {
				return err
			}
			if !reveal {
				redactConfig(&cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print secrets and seed passwords")
	return cmd
}

func redactConfig(cfg *appconfig.Config) {
	if cfg.Auth.JWTSecret != "" {
		cfg.Auth.JWTSecret = redacted
	}
	for i := range cfg.Auth.SeedUsers {
		seed := &cfg.Auth.SeedUsers[i]
		if seed.Password != "" {
			seed.Password = redacted
		}
		if seed.TOTPSecret != "" {
			seed.TOTPSecret = redacted
		}
	}
	if cfg.Site.DemoPassword != "" {
		cfg.Site.DemoPassword = redacted
	}
}
