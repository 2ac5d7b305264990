package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/contenttype/internal/app"
	"github.com/conduit-lang/contenttype/internal/cli/ui"
	"github.com/conduit-lang/contenttype/internal/content"
	"github.com/conduit-lang/contenttype/internal/web/auth"
	"github.com/conduit-lang/contenttype/internal/web/server"
)

// tokenTTL is the lifetime of tokens issued by the token command
const tokenTTL = 24 * time.Hour

func newEndpointsCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "endpoints",
		Short: "List the routing table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := flags.context(cmd.Context())
			a, err := flags.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			table := ui.NewTable(cmd.OutOrStdout(), "PATH", "TYPE", "TYPE ID", "ID")
			for _, e := range a.Endpoints.All() {
				id := e.Value.ContentID + e.Value.CatID + e.Value.TagID + e.Value.TermID
				idText := ""
				if id > 0 {
					idText = formatID(id)
				}
				table.AddRow(e.Path, string(e.Value.Type), formatID(e.Value.TypeID), idText)
			}
			table.Render()
			return nil
		},
	}
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve every endpoint over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Addr()
			}

			logger, err := flags.logger(cfg, false)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer logger.Sync()

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}

			routerCfg := server.RouterConfig{Engine: a.Engine, Endpoints: a.Endpoints, Logger: logger}
			if cfg.Auth.JWTSecret != "" {
				routerCfg.Auth = auth.NewAuthService(cfg.Auth.JWTSecret, tokenTTL)
			} else {
				logger.Warn("auth.jwt_secret is empty, all requests are anonymous")
			}

			srv, err := server.New(server.DefaultConfig(addr, server.NewRouter(routerCfg)))
			if err != nil {
				a.Close()
				return err
			}

			gs := server.NewGracefulShutdown(srv, server.ShutdownConfig{Logger: logger})
			gs.RegisterHook(func(context.Context) error { return a.Close() })

			logger.Info("serving endpoints",
				zap.String("addr", addr),
				zap.Int("endpoints", len(a.Endpoints.All())))
			return gs.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.host:server.port)")
	return cmd
}

func newTokenCommand(flags *globalFlags) *cobra.Command {
	var name, email, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for --actor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}

			actor := &content.Actor{ID: flags.actorID, Name: name, Email: email, Role: role}
			token, err := auth.NewAuthService(cfg.Auth.JWTSecret, tokenTTL).GenerateToken(actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "actor display name")
	cmd.Flags().StringVar(&email, "email", "", "actor email")
	cmd.Flags().StringVar(&role, "role", "", "actor role")
	return cmd
}
