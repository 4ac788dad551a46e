package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mastervim/mitre-hunter/internal/config"
	"github.com/mastervim/mitre-hunter/internal/kb"
	"github.com/mastervim/mitre-hunter/internal/observability"
	"github.com/mastervim/mitre-hunter/internal/webapp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var refreshInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the interactive web UI",
	Long: `Serve the filter UI and JSON API over HTTP. With --refresh, the bundle is
re-downloaded periodically and a brand-new knowledge base is swapped in
atomically; in-flight requests finish against the snapshot they started
with.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.Get()
		logger := observability.GetLogger()

		snapshot := &kb.Snapshot{}
		knowledgeBase, report, err := loadKnowledgeBase(ctx, false)
		if err != nil {
			return err
		}
		snapshot.Publish(knowledgeBase)
		printLoadReport(report)

		server, err := webapp.NewServer(snapshot, cfg.Query.MaxResults, logger)
		if err != nil {
			return err
		}

		httpServer := &http.Server{
			Addr:              cfg.Web.ListenAddr,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if refreshInterval > 0 {
			go refreshLoop(ctx, snapshot, refreshInterval, logger)
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()

		fmt.Printf("Serving on http://%s\n", cfg.Web.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// refreshLoop rebuilds the knowledge base on a timer. A failed refresh
// keeps the previous snapshot in place; readers never see a partial build.
func refreshLoop(ctx context.Context, snapshot *kb.Snapshot, interval time.Duration, logger *zap.Logger) {
	log := logger.Named("refresh")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			knowledgeBase, report, err := loadKnowledgeBase(ctx, true)
			if err != nil {
				log.Error("Refresh failed, keeping previous snapshot", zap.Error(err))
				continue
			}
			snapshot.Publish(knowledgeBase)
			log.Info("Knowledge base refreshed",
				zap.String("load_id", report.LoadID),
				zap.Int("techniques", len(knowledgeBase.TechniqueOrder)))
		}
	}
}

func init() {
	serveCmd.Flags().DurationVar(&refreshInterval, "refresh", 0, "re-download interval (0 disables periodic refresh)")
	rootCmd.AddCommand(serveCmd)
}
