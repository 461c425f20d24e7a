package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/app/client"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/config"
	"github.com/NIFCLOUD-mbaas/ncmb-go/internal/utils/logger"
)

var (
	cfg     *config.Config
	log     *slog.Logger
	app     *client.App
	appKey  string
	cliKey  string
	apiHost string
)

var rootCmd = &cobra.Command{
	Use:   "ncmb",
	Short: "ncmb - command line client for the NIFCLOUD mobile backend",
	Long: `ncmb talks to the NIFCLOUD mobile backend over its signed REST API.

Credentials are taken from the environment (NCMB_APPLICATION_KEY,
NCMB_CLIENT_KEY) or from flags; the login session and the installation
record are cached locally so repeated runs stay authenticated.`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(_ *cobra.Command, _ []string) error {
	viper.AutomaticEnv()

	cfg = config.MustLoad()
	if appKey != "" {
		cfg.ApplicationKey = appKey
	}
	if cliKey != "" {
		cfg.ClientKey = cliKey
	}
	if apiHost != "" {
		cfg.APIHost = apiHost
	}

	log = logger.New(cfg.Env)

	var err error
	app, err = client.New(cfg, log, nil)
	if err != nil {
		return fmt.Errorf("cannot initialize client: %w", err)
	}

	return nil
}

func init() {
	cobra.OnInitialize()

	rootCmd.PersistentFlags().StringVar(&appKey, "application-key", "", "application key")
	rootCmd.PersistentFlags().StringVar(&cliKey, "client-key", "", "client key")
	rootCmd.PersistentFlags().StringVar(&apiHost, "host", "", "API host override")
}
