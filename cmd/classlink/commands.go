package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/classlink/internal/config"
	chttp "github.com/dropDatabas3/classlink/internal/http"
	mw "github.com/dropDatabas3/classlink/internal/http/middlewares"
	"github.com/dropDatabas3/classlink/internal/http/router"
	healthsvc "github.com/dropDatabas3/classlink/internal/http/services/health"
	"github.com/dropDatabas3/classlink/internal/loginflow"
	"github.com/dropDatabas3/classlink/internal/observability/logger"
	"github.com/dropDatabas3/classlink/internal/security/secretbox"
	"github.com/dropDatabas3/classlink/internal/upgrade"
)

func newServeCmd(cfg func() *config.Config) *cobra.Command {
	var install bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el endpoint HTTP de login",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := cfg()
			a, err := newApp(ctx, c)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ensureSchema(ctx, install); err != nil {
				return err
			}

			flow, err := a.loginFlow(ctx)
			if err != nil {
				return err
			}

			proxies, err := mw.ParseTrustedProxies(c.Server.TrustedProxies)
			if err != nil {
				return fmt.Errorf("server.trusted_proxies: %w", err)
			}

			health := healthsvc.Deps{Version: version, DBCheck: a.stores.Store.Ping}
			if a.cache != nil {
				health.CacheCheck = a.cache.Ping
			}
			srv := chttp.NewServer(c.Server.Addr, router.New(router.Deps{
				Flow:    flow,
				Health:  health,
				Metrics: a.metrics,
				Logger:  a.log,

				LoginLimiter:   a.loginLimiter(),
				TrustedProxies: proxies,
			}), c.Server.ReadHeaderTimeout, c.Server.ShutdownTimeout)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.log.Info("http server listening", logger.String("addr", c.Server.Addr), logger.Flow(c.Classlink.Flow))
				return srv.Run(gctx)
			})
			if err := g.Wait(); err != nil {
				return err
			}
			a.log.Info("http server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&install, "install", false, "Crear/actualizar el esquema antes de servir")
	return cmd
}

func newInstallCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Crea las tablas faltantes y aplica todos los pasos de upgrade",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := upgrade.Install(ctx, a.stores.Store, upgrade.Options{Metrics: a.metrics, Logger: a.log})
			printResult(cmd, res)
			return err
		},
	}
}

func newUpgradeCmd(cfg func() *config.Config) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Aplica los pasos de upgrade posteriores a la versión instalada",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg())
			if err != nil {
				return err
			}
			defer a.Close()

			r := upgrade.NewRunner(a.stores.Store, upgrade.Options{Metrics: a.metrics, Logger: a.log})
			var res *upgrade.Result
			if from != "" {
				v, perr := upgrade.ParseVersion(from)
				if perr != nil {
					return fmt.Errorf("--from: %w", perr)
				}
				res, err = r.RunFrom(ctx, v)
			} else {
				res, err = r.Run(ctx)
			}
			printResult(cmd, res)
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Versión desde la cual aplicar (default: la guardada)")
	return cmd
}

func newLoginCmd(cfg func() *config.Config) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Corre el login hook una vez contra el provider configurado",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("CLASSLINK_LOGIN_PASSWORD")
			}
			if username == "" || password == "" {
				return errors.New("--username y --password (o CLASSLINK_LOGIN_PASSWORD) son obligatorios")
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ensureSchema(ctx, false); err != nil {
				return err
			}
			flow, err := a.loginFlow(ctx)
			if err != nil {
				return err
			}
			res, err := flow.LoginHook(ctx, &loginflow.LoginForm{Username: username, Password: password})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case !res.Continue:
				fmt.Fprintln(out, "rejected")
			case res.User != nil:
				fmt.Fprintf(out, "bound user id=%d username=%s auth=%s\n", res.User.ID, res.User.Username, res.User.Auth)
			default:
				fmt.Fprintln(out, "continue")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "Usuario tal como lo tipearía en el formulario")
	cmd.Flags().StringVar(&password, "password", "", "Password (env CLASSLINK_LOGIN_PASSWORD)")
	return cmd
}

func printResult(cmd *cobra.Command, res *upgrade.Result) {
	if res == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "from=%s to=%s applied=%d skipped=%d duration=%s\n",
		res.From, res.To, len(res.Applied), len(res.Skipped), res.Duration)
	if res.Failed != nil {
		fmt.Fprintf(out, "failed at %s: %v\n", res.Failed, res.Error)
	}
}

func newEncryptSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-secret <plaintext>",
		Short: "Cifra un valor con SECRETBOX_MASTER_KEY para usarlo en la config",
		Args:  cobra.ExactArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := secretbox.FromEnv()
			if err != nil {
				return err
			}
			sealed, err := box.Seal(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
}
