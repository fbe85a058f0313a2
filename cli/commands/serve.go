package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/restomatic/restomatic-go/cli/internal/ui"
	"github.com/restomatic/restomatic-go/endpoint"
	"github.com/restomatic/restomatic-go/internal/debug"
	"github.com/restomatic/restomatic-go/runtime/client"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured tables as a JSON REST API",
		Long: `Serve the configured tables over HTTP. Tables listed under endpoints in
the config are served with the given methods; without an endpoints section
every table is served with all methods.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			gin.SetMode(gin.ReleaseMode)
			router, err := newRouter(db, opts.cfg.EndpointTables())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, &http.Server{Addr: opts.cfg.Listen, Handler: router})
		},
	}

	cmd.Flags().String("listen", "", "address to listen on (default :8080)")
	return cmd
}

// newRouter mounts a health check and the endpoints of every table.
func newRouter(db *client.DB, endpoints map[string][]string) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	tables := make([]string, 0, len(endpoints))
	for table := range endpoints {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	s := endpoint.New(db)
	for _, table := range tables {
		if err := s.Register(router, table, endpoints[table]...); err != nil {
			return nil, err
		}
	}
	return router, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		debug.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	ui.PrintSuccess("listening on %s", srv.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	ui.PrintInfo("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
