package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mastervim/mitre-hunter/api/schemas"
	"github.com/mastervim/mitre-hunter/internal/cache"
	"github.com/mastervim/mitre-hunter/internal/config"
	"github.com/mastervim/mitre-hunter/internal/fetch"
	"github.com/mastervim/mitre-hunter/internal/kb"
	"github.com/mastervim/mitre-hunter/internal/observability"
	"go.uber.org/zap"
)

// loadKnowledgeBase obtains bundle bytes (cache first, download on miss or
// when forced) and builds a fresh knowledge base from them.
func loadKnowledgeBase(ctx context.Context, force bool) (*kb.KnowledgeBase, *schemas.LoadReport, error) {
	cfg := config.Get()
	logger := observability.GetLogger()

	store, err := cache.New(cfg.Cache.Dir, logger)
	if err != nil {
		return nil, nil, err
	}

	var data []byte
	if !force {
		data, err = store.Read()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, nil, err
		}
	}

	if data == nil {
		client := fetch.New(cfg.Fetch, logger)
		payload, digest, err := client.Download(ctx)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Fetched ATT&CK bundle", zap.String("sha256", digest))
		if err := store.Write(payload); err != nil {
			return nil, nil, err
		}
		data = payload
	}

	return kb.Load(data, logger)
}

// printLoadReport summarizes a load for the terminal. Data-quality skips
// are advisory; the load itself succeeded.
func printLoadReport(report *schemas.LoadReport) {
	fmt.Printf("Loaded knowledge base (%s schema)\n", report.SchemaMode)
	fmt.Printf("  techniques:   %d\n", report.EntityCounts[schemas.KindTechnique])
	fmt.Printf("  tactics:      %d\n", report.EntityCounts[schemas.KindTactic])
	fmt.Printf("  actors:       %d\n", report.EntityCounts[schemas.KindThreatActor])
	fmt.Printf("  data sources: %d\n", report.EntityCounts[schemas.KindDataSource])
	fmt.Printf("  mitigations:  %d\n", report.EntityCounts[schemas.KindMitigation])
	if report.Synthesized > 0 {
		fmt.Printf("  synthesized:  %d records (legacy data-source form)\n", report.Synthesized)
	}
	if len(report.Skipped) > 0 {
		fmt.Printf("  skipped:      %d records (see log for details)\n", len(report.Skipped))
	}
	if len(report.DuplicateIDs) > 0 {
		fmt.Printf("  duplicates:   %d ids (last occurrence kept)\n", len(report.DuplicateIDs))
	}
}
