// Command societyd runs the society management API and its maintenance tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"societycore/internal/config"
	"societycore/internal/identity"
	"societycore/internal/provisioning"
	"societycore/pkg/domain"
	"societycore/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "societyd",
		Short:         "Residential society management service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	root.AddCommand(newServeCmd(), newBootstrapCmd(), newTempPasswordCmd())
	return root
}

// loadConfig reads --config and builds the process logger.
func loadConfig(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	lggr, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, lggr, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, lggr, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = lggr.Sync() }()
			a, err := openApp(cmd.Context(), cfg, lggr)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					lggr.Warnw("shutdown incomplete", "err", err)
				}
			}()
			ln, err := net.Listen("tcp", cfg.HTTP.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.HTTP.Addr, err)
			}
			return serve(cmd.Context(), ln, a.handler(), cfg.HTTP, lggr)
		},
	}
}

// serve runs the server until ctx is cancelled, then drains in-flight
// requests for at most the configured grace period.
func serve(ctx context.Context, ln net.Listener, h http.Handler, cfg config.HTTP, lggr logger.Logger) error {
	srv := &http.Server{
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lggr.Infow("http server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownGrace)
		defer cancel()
		lggr.Infow("http server stopping")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newBootstrapCmd() *cobra.Command {
	var (
		orgName  string
		email    string
		fullName string
		phone    string
	)
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create an organization and its first administrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, lggr, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = lggr.Sync() }()
			a, err := openApp(cmd.Context(), cfg, lggr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return bootstrap(cmd.Context(), cmd.OutOrStdout(), a, orgName, provisioning.MemberRequest{
				Email:    email,
				FullName: fullName,
				Phone:    phone,
				Role:     string(domain.RoleAdmin),
			})
		},
	}
	cmd.Flags().StringVar(&orgName, "org", "", "Organization name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Administrator email (required)")
	cmd.Flags().StringVar(&fullName, "name", "", "Administrator full name")
	cmd.Flags().StringVar(&phone, "phone", "", "Administrator phone number")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func bootstrap(ctx context.Context, out io.Writer, a *app, orgName string, req provisioning.MemberRequest) error {
	org, _, err := a.svc.CreateOrganization(ctx, domain.System(""), domain.Organization{Name: orgName})
	if err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	operator := identity.Principal{ProfileID: "system", OrganizationID: org.ID, Role: domain.RoleSuperAdmin, Status: domain.StatusActive}
	req.OrganizationID = org.ID
	res, err := a.provisioning.CreateMember(ctx, operator, "", req)
	if err != nil {
		return fmt.Errorf("create administrator: %w", err)
	}
	fmt.Fprintf(out, "organization: %s (%s)\n", org.Name, org.ID)
	fmt.Fprintf(out, "administrator: %s (%s)\n", res.Profile.Email, res.Profile.ID)
	if res.TemporaryPassword != "" {
		fmt.Fprintf(out, "temporary password: %s\n", res.TemporaryPassword)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	return nil
}

func newTempPasswordCmd() *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "temp-password",
		Short: "Print a random temporary password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := identity.GenerateTemporaryPassword(length)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pw)
			return nil
		},
	}
	cmd.Flags().IntVarP(&length, "length", "n", 12, "Password length")
	return cmd
}
