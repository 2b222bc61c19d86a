package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"
)

// envFileVar names an alternative .env file.
const envFileVar = "HALOLIGHT_ENV_FILE"

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	envErr := loadDotEnv(os.Getenv(envFileVar))
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)
	if envErr != nil {
		logger.Warn("dotenv load failed", "err", envErr)
	}

	root := newRootCmd()
	root.SetArgs(os.Args[1:])

	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("halolight command failed")
		return 1
	}
	return 0
}

// loadDotEnv loads .env (or path) into the environment without overriding
// variables that are already set. A missing default file is not an error.
func loadDotEnv(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "halolight",
		Short:         "Halolight admin shell server",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newBootstrapCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newUsersCmd())
	root.AddCommand(newConfigCmd())

	return root
}
