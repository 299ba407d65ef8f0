package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/feedgraph/feedgraph/pkg/adapter"
	"github.com/feedgraph/feedgraph/pkg/costs"
	"github.com/feedgraph/feedgraph/pkg/graph"
	"github.com/feedgraph/feedgraph/pkg/repository"
	"github.com/feedgraph/feedgraph/pkg/vector"
	"github.com/m-mizutani/goerr/v2"
)

const (
	dbFile    = "feedgraph.db"
	graphFile = "graph.json"
	indexFile = "index.json"
	costsFile = "costs.json"
)

// engine bundles the persistent state and provider clients one command
// run works with. Graph and index snapshots are loaded on open and written
// back by save after successful mutation.
type engine struct {
	dataDir string

	repo    repository.Repository
	graph   *graph.Graph
	index   *vector.Index
	tracker *costs.Tracker

	embedder   adapter.Embedder
	extractor  adapter.Extractor
	summarizer adapter.Summarizer
}

// openEngine loads repository, graph and index state from the data dir.
// withLLM controls whether provider clients are built; read-only commands
// (feed list, history, stats) skip them.
func (cfg *config) openEngine(ctx context.Context, withLLM bool) (*engine, error) {
	if err := cfg.setup(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create data dir", goerr.V("dir", cfg.dataDir))
	}

	repo, err := repository.NewSQLite(filepath.Join(cfg.dataDir, dbFile))
	if err != nil {
		return nil, err
	}

	e := &engine{
		dataDir: cfg.dataDir,
		repo:    repo,
		graph:   graph.New(),
		index:   vector.New(0),
		tracker: costs.New(),
	}

	if err := e.loadSnapshots(); err != nil {
		return nil, err
	}
	if err := e.tracker.LoadFile(filepath.Join(cfg.dataDir, costsFile)); err != nil {
		return nil, err
	}

	if withLLM {
		if err := cfg.buildProviders(ctx, e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (cfg *config) buildProviders(ctx context.Context, e *engine) error {
	t := cfg.tunables
	switch cfg.provider {
	case "gemini", "":
		if cfg.geminiProject == "" {
			return goerr.New("gemini-project is required")
		}
		opts := []adapter.GeminiOption{adapter.WithGeminiUsageReporter(e.tracker)}
		if t.Models.GeminiGenerative != "" {
			opts = append(opts, adapter.WithGeminiGenerativeModel(t.Models.GeminiGenerative))
		}
		if t.Models.GeminiEmbedding != "" {
			opts = append(opts, adapter.WithGeminiEmbeddingModel(t.Models.GeminiEmbedding))
		}
		client, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
		if err != nil {
			return err
		}
		e.embedder, e.extractor, e.summarizer = client, client, client

	case "openai":
		opts := []adapter.OpenAIOption{adapter.WithOpenAIUsageReporter(e.tracker)}
		if t.Models.OpenAIChat != "" {
			opts = append(opts, adapter.WithOpenAIChatModel(t.Models.OpenAIChat))
		}
		client, err := adapter.NewOpenAI(cfg.openaiAPIKey, opts...)
		if err != nil {
			return err
		}
		e.embedder, e.extractor, e.summarizer = client, client, client

	default:
		return goerr.New("unknown provider", goerr.V("provider", cfg.provider))
	}
	return nil
}

func (e *engine) loadSnapshots() error {
	if f, err := os.Open(filepath.Join(e.dataDir, graphFile)); err == nil {
		defer f.Close()
		g, err := graph.Load(f)
		if err != nil {
			return err
		}
		e.graph = g
	} else if !os.IsNotExist(err) {
		return goerr.Wrap(err, "failed to open graph snapshot")
	}

	if f, err := os.Open(filepath.Join(e.dataDir, indexFile)); err == nil {
		defer f.Close()
		x, err := vector.Load(f)
		if err != nil {
			return err
		}
		e.index = x
	} else if !os.IsNotExist(err) {
		return goerr.Wrap(err, "failed to open index snapshot")
	}
	return nil
}

// save writes graph/index snapshots and the cost log. Snapshots go to a
// temp file first so a crash mid-write cannot clobber committed state.
func (e *engine) save() error {
	if err := writeAtomic(filepath.Join(e.dataDir, graphFile), e.graph.Save); err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(e.dataDir, indexFile), e.index.Save); err != nil {
		return err
	}
	return e.tracker.SaveFile(filepath.Join(e.dataDir, costsFile))
}

// saveCosts persists only the cost log, for commands that never mutate
// graph or index state.
func (e *engine) saveCosts() error {
	return e.tracker.SaveFile(filepath.Join(e.dataDir, costsFile))
}

func (e *engine) close() error {
	return e.repo.Close()
}

func writeAtomic(path string, write func(w io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return goerr.Wrap(err, "failed to create snapshot file", goerr.V("path", tmp))
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		return goerr.Wrap(err, "failed to close snapshot file", goerr.V("path", tmp))
	}
	if err := os.Rename(tmp, path); err != nil {
		return goerr.Wrap(err, "failed to replace snapshot", goerr.V("path", path))
	}
	return nil
}
