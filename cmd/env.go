package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-report/internal/compare"
	"github.com/sells-group/chapter-report/internal/identity"
	"github.com/sells-group/chapter-report/internal/ingest"
	"github.com/sells-group/chapter-report/internal/pipeline"
	"github.com/sells-group/chapter-report/internal/store"
)

// pipelineEnv holds the store, the file source and the service shared by
// every subcommand.
type pipelineEnv struct {
	Store   store.Store
	Source  *ingest.FileSource
	Service *pipeline.Service
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the config for mode, opens and migrates the store
// and builds the Service. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	var aliases identity.Aliases
	if cfg.Ingest.AliasFile != "" {
		a, err := identity.LoadAliasesFile(cfg.Ingest.AliasFile)
		if err != nil {
			return nil, err
		}
		aliases = a
		zap.L().Info("loaded alias file", zap.String("path", cfg.Ingest.AliasFile), zap.Int("aliases", a.Len()))
	}

	st, err := store.Open(ctx, store.Config{
		Driver:   cfg.Store.Driver,
		DSN:      cfg.Store.DatabaseURL,
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	src := ingest.NewFileSource(cfg.Ingest.Dir, ingest.XLSXOptions{
		SheetName:  cfg.Ingest.SheetName,
		SheetIndex: cfg.Ingest.SheetIndex,
	})
	svc := pipeline.New(src, src, st, pipeline.Options{
		Classify:       cfg.Classify,
		Compare:        compare.Options{TopN: cfg.Compare.TopN},
		MaxConcurrency: cfg.Pipeline.MaxConcurrency,
		Retry:          cfg.Pipeline.Retry,
		Aliases:        aliases,
	})

	return &pipelineEnv{Store: st, Source: src, Service: svc}, nil
}

func requireChapter() error {
	if chapterID == "" {
		return eris.New("--chapter is required")
	}
	return nil
}
