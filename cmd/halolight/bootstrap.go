package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pkt.systems/halolight/bootstrap"
	"pkt.systems/pslog"
)

func newBootstrapCmd() *cobra.Command {
	var outputDir string
	var overwrite bool
	var noSeedUsers bool
	var jwt bool
	var imageTag string
	var hostPort int
	var basePath string
	var sets []string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Generate default config and container files",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			out := outputDir
			if out == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				out = filepath.Join(home, ".halolight")
			}
			opts := bootstrap.Options{
				SeedUsers: !noSeedUsers,
				JWT:       jwt,
				ImageTag:  imageTag,
				HostPort:  hostPort,
			}
			for _, raw := range sets {
				override, err := bootstrap.ParseOverride(raw)
				if err != nil {
					return err
				}
				opts.Overrides = append(opts.Overrides, override)
			}
			if basePath != "" {
				opts.Overrides = append(opts.Overrides, bootstrap.ConfigOverride{
					Target: bootstrap.OverrideBoth,
					Path:   "http.base_path",
					Value:  basePath,
				})
			}
			paths, err := bootstrap.WriteBootstrap(out, overwrite, opts)
			if err != nil {
				return err
			}
			logger.Info("bootstrap wrote", "path", paths.HostConfigPath, "name", "config.yaml")
			logger.Info("bootstrap wrote", "path", paths.UserFile, "name", "users.json")
			logger.Info("bootstrap wrote", "path", paths.Bundle.ConfigPath, "name", "config-for-container.yaml")
			logger.Info("bootstrap wrote", "path", paths.Bundle.ComposePath, "name", "docker-compose.yaml")
			logger.Info("bootstrap wrote", "path", paths.Bundle.ContainerfilePath, "name", "Containerfile")
			logger.Info("bootstrap wrote", "path", paths.EnvPath, "name", ".env")
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	cmd.Flags().BoolVar(&overwrite, "force", false, "overwrite existing files")
	cmd.Flags().BoolVar(&noSeedUsers, "no-seed-users", false, "do not seed the demo accounts")
	cmd.Flags().BoolVar(&jwt, "jwt", false, "issue signed JWT tokens in the container")
	cmd.Flags().StringVar(&imageTag, "image-tag", "", "container image tag (defaults to the binary version)")
	cmd.Flags().IntVar(&hostPort, "port", 5173, "host port published by docker compose")
	cmd.Flags().StringVar(&basePath, "base-path", "", "serve under a path prefix, e.g. /admin")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a config key, e.g. container:http.enable_metrics=true (repeatable)")
	return cmd
}
