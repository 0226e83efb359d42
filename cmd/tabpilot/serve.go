package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/tabpilot/auth"
	"github.com/hazyhaar/tabpilot/host"
	"github.com/hazyhaar/tabpilot/pilot"
)

func newServeCmd() *cobra.Command {
	var (
		useMCP bool
		grant  string
		addr   string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API, or MCP tools on stdio with --mcp",
		RunE: func(cmd *cobra.Command, _ []string) error {
			perms, err := parsePermissions(grant)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			p, logger, err := openPilot(ctx, pilot.StaticPrompter{Allow: perms})
			if err != nil {
				return err
			}
			defer p.Close()

			// Polls for task changes; RUN is only posted while runOnTaskChange is set.
			w := p.WatchTasks(ctx)
			defer func() {
				logger.Info("tabpilot: task watcher stopped", "task_id", w.Token(), "stats", w.Stats())
			}()

			if useMCP {
				srv := mcp.NewServer(&mcp.Implementation{Name: "tabpilot", Version: "1.0.0"}, nil)
				p.RegisterMCP(srv)
				logger.Info("tabpilot: serving MCP on stdio")
				return srv.Run(ctx, &mcp.StdioTransport{})
			}

			if addr == "" {
				addr = p.Config.HTTP.Addr
			}
			if secret := p.Config.HTTP.TokenSecret; secret != "" {
				if err := auth.ValidateSecret([]byte(secret)); err != nil {
					return err
				}
			} else {
				logger.Warn("tabpilot: HTTP API has no token secret, any local process can drive the browser")
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           p.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				logger.Info("tabpilot: HTTP starting", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("tabpilot: shutdown", "error", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&useMCP, "mcp", false, "serve MCP tools on stdin/stdout instead of HTTP")
	cmd.Flags().StringVar(&grant, "grant", "", "comma-separated permissions granted without prompting (storage,downloads)")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default from config)")
	return cmd
}

func parsePermissions(s string) ([]host.Permission, error) {
	var perms []host.Permission
	for _, f := range strings.Split(s, ",") {
		switch p := host.Permission(strings.TrimSpace(f)); p {
		case "":
		case host.PermStorage, host.PermDownloads:
			perms = append(perms, p)
		default:
			return nil, fmt.Errorf("unknown permission %q", f)
		}
	}
	return perms, nil
}
