// tablerag answers natural-language analytical questions over spreadsheet
// tables: intent parsing, hybrid retrieval over an embedding index, query
// plan compilation, pandas code generation and column lineage reconciliation.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/tablerag/tablerag-go/internal/adapters/codegen"
	"github.com/tablerag/tablerag-go/internal/adapters/embedding"
	"github.com/tablerag/tablerag-go/internal/adapters/filewatcher"
	"github.com/tablerag/tablerag-go/internal/adapters/runner"
	"github.com/tablerag/tablerag-go/internal/adapters/summaries"
	"github.com/tablerag/tablerag-go/internal/adapters/vectordb"
	"github.com/tablerag/tablerag-go/internal/config"
	"github.com/tablerag/tablerag-go/internal/domain/ports"
	"github.com/tablerag/tablerag-go/internal/domain/usecases"
	httpserver "github.com/tablerag/tablerag-go/internal/infrastructure/http"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	index, err := newIndex(cfg)
	if err != nil {
		log.Fatalf("[ERROR] creating vector index: %v", err)
	}

	embedder := embedding.NewOllamaAdapter(cfg.OllamaBaseURL, cfg.EmbedModel)
	generator := codegen.NewOllamaAdapter(cfg.OllamaBaseURL, cfg.CodegenModel)

	var codeRunner ports.CodeRunner
	if cfg.EnableRunner {
		codeRunner = runner.NewPythonRunner(cfg.PythonPath, cfg.RunnerTimeout)
	}

	parser := usecases.NewIntentParser()
	indexer := usecases.NewIndexUseCase(embedder, index)
	retriever := usecases.NewRetrieverUseCase(embedder, index)
	compiler := usecases.NewPlanCompiler()
	answer := usecases.NewAnswerUseCase(parser, retriever, compiler, generator, codeRunner)

	source := summaries.NewDirLoader(cfg.SummariesDir)
	rebuild := func(ctx context.Context) error {
		loaded, err := source.Load(ctx)
		if err != nil {
			return err
		}
		log.Printf("[INFO] rebuilding index from %d table summaries", len(loaded))
		return indexer.Build(ctx, loaded)
	}

	if err := rebuild(ctx); err != nil {
		log.Printf("[WARN] initial index build failed: %v", err)
	}

	if cfg.WatchSummaries {
		go watchSummaries(ctx, cfg.SummariesDir, rebuild)
	}

	server := httpserver.NewServer(parser, retriever, answer, rebuild, cfg.ServerAddr, cfg.DefaultTopK)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("[ERROR] server: %v", err)
	}
	log.Printf("[INFO] shutdown complete")
}

func newIndex(cfg *config.Config) (ports.VectorIndex, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return vectordb.NewSQLiteIndex(cfg.KnowledgeBaseDir)
	case "pgvector":
		return vectordb.NewPgvectorIndex(cfg.PostgresDSN, cfg.EmbeddingDim)
	default:
		return vectordb.NewInMemoryIndex(), nil
	}
}

// watchSummaries rebuilds the index whenever a summary file changes. Events
// are debounced: writers often emit several events per save.
func watchSummaries(ctx context.Context, dir string, rebuild func(ctx context.Context) error) {
	watcher, err := filewatcher.NewFSNotifyWatcher(nil)
	if err != nil {
		log.Printf("[ERROR] creating file watcher: %v", err)
		return
	}
	defer watcher.Stop()

	events, err := watcher.Watch(ctx, dir)
	if err != nil {
		log.Printf("[ERROR] watching %s: %v", dir, err)
		return
	}
	log.Printf("[INFO] watching %s for summary changes", dir)

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			log.Printf("[INFO] summary change detected: %s", event.Path)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(2*time.Second, func() {
				if err := rebuild(ctx); err != nil {
					log.Printf("[ERROR] index rebuild failed: %v", err)
				}
			})
		}
	}
}
