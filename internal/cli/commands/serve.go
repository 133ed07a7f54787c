package commands

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/archetype-labs/archlint/internal/server"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr string // Listen address
	Dir  string // Configuration directory to serve
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a configuration directory over HTTP",
		Long: `Serve archetype configurations, rules and exemptions from a local
directory over the same HTTP protocol the check command consumes.

The exemptions endpoint is guarded by a shared secret when
ARCHLINT_EXEMPTIONS_TOKEN is set in the environment.`,
		Example: `  # Serve ./config on the default port
  archlint serve --dir ./config

  # Custom listen address
  archlint serve --dir ./config --addr :9090`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8745", "Listen address")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "Configuration directory to serve (required)")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	if info, err := os.Stat(opts.Dir); err != nil || !info.IsDir() {
		return fmt.Errorf("configuration directory %q is not readable", opts.Dir)
	}

	srv := server.New(server.Config{
		Dir:    opts.Dir,
		Token:  os.Getenv("ARCHLINT_EXEMPTIONS_TOKEN"),
		Logger: cmdCtx.Logger,
	})

	httpSrv := &http.Server{
		Addr:              opts.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-cmd.Context().Done()
		_ = httpSrv.Close()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", opts.Dir, opts.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
