package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/classlink/internal/config"
	"github.com/dropDatabas3/classlink/internal/observability/logger"
)

var version = "dev"

type rootFlags struct {
	configPath string
	envFile    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		flags rootFlags
		cfg   *config.Config
	)

	root := &cobra.Command{
		Use:           "classlink",
		Short:         "Login classlink (ROPC) con vinculación de cuentas locales",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env es opcional; las variables del sistema siguen valiendo
			if flags.envFile != "" {
				if err := godotenv.Load(flags.envFile); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("load %s: %w", flags.envFile, err)
				}
			}
			c, err := config.Load(flags.configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if err := c.RevealSecrets(loadBox()); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cfg = c
			logger.Init(logger.Config{
				Env:         c.App.Env,
				Level:       c.App.LogLevel,
				ServiceName: "classlink",
				Version:     version,
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", os.Getenv("CONFIG_PATH"), "Ruta al YAML de configuración (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Archivo .env a cargar antes de leer la config")

	getCfg := func() *config.Config { return cfg }
	root.AddCommand(
		newServeCmd(getCfg),
		newInstallCmd(getCfg),
		newUpgradeCmd(getCfg),
		newLoginCmd(getCfg),
		newEncryptSecretCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Imprime la versión",
			PersistentPreRunE: func(*cobra.Command, []string) error {
				return nil
			},
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}
