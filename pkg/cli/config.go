package cli

import (
	"os"

	"github.com/feedgraph/feedgraph/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values shared across commands
type config struct {
	dataDir    string
	configPath string
	logLevel   string
	logFormat  string

	// Providers
	provider       string
	geminiProject  string
	geminiLocation string
	openaiAPIKey   string

	tunables tunables
}

// tunables are the scoring and pipeline knobs, loadable from a YAML file.
// The defaults are policy, not contract; anything here may be tuned.
type tunables struct {
	Chunking struct {
		Size    int `yaml:"size"`
		Overlap int `yaml:"overlap"`
	} `yaml:"chunking"`
	Search struct {
		TopK  int     `yaml:"topK"`
		Alpha float64 `yaml:"alpha"`
		Depth int     `yaml:"depth"`
	} `yaml:"search"`
	Discovery struct {
		Beta      float64 `yaml:"beta"`
		Depth     int     `yaml:"depth"`
		StarBoost float64 `yaml:"starBoost"`
	} `yaml:"discovery"`
	Models struct {
		GeminiGenerative string `yaml:"geminiGenerative"`
		GeminiEmbedding  string `yaml:"geminiEmbedding"`
		OpenAIChat       string `yaml:"openaiChat"`
	} `yaml:"models"`
	Workers int `yaml:"workers"`
}

func defaultTunables() tunables {
	var t tunables
	t.Chunking.Size = 1200
	t.Chunking.Overlap = 100
	t.Search.TopK = 20
	t.Search.Alpha = 0.5
	t.Search.Depth = 3
	t.Discovery.Beta = 0.7
	t.Discovery.Depth = 3
	t.Discovery.StarBoost = 1.5
	t.Workers = 4
	return t
}

// loadTunables reads the optional YAML config file over the defaults.
func loadTunables(path string) (tunables, error) {
	t := defaultTunables()
	if path == "" {
		return t, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return t, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}
	return t, nil
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "data-dir",
			Aliases:     []string{"d"},
			Usage:       "Directory for the database and graph/index snapshots",
			Value:       "./feedgraph",
			Sources:     cli.EnvVars("FEEDGRAPH_DATA_DIR"),
			Destination: &cfg.dataDir,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config with scoring/pipeline tunables",
			Sources:     cli.EnvVars("FEEDGRAPH_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("FEEDGRAPH_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("FEEDGRAPH_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
	}
}

// llmFlags returns flags for LLM provider configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "provider",
			Usage:       "LLM provider (gemini, openai)",
			Value:       "gemini",
			Sources:     cli.EnvVars("FEEDGRAPH_PROVIDER"),
			Destination: &cfg.provider,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &cfg.openaiAPIKey,
		},
	}
}

// setup finalizes shared configuration: logger and tunables.
func (cfg *config) setup() error {
	logging.SetDefault(logging.New(cfg.logLevel, cfg.logFormat, os.Stderr))

	t, err := loadTunables(cfg.configPath)
	if err != nil {
		return err
	}
	cfg.tunables = t
	return nil
}
