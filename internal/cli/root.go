package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"knowbase/config"
	"knowbase/internal/adapter/embedding"
	"knowbase/internal/adapter/store"
	"knowbase/internal/domain"
	"knowbase/internal/emoji"
	applog "knowbase/internal/log"
	"knowbase/internal/port"
	"knowbase/internal/usecase"
	"knowbase/internal/variant"
)

var (
	cfgFile     string
	cfg         *config.Config
	flagSource  string
	flagLoad    string
	flagModel   string
	flagSchemas []string
	flagStore   string
	dontClear   bool
	memoryStore bool
	noEmoji     bool
)

var rootCmd = &cobra.Command{
	Use:   "knowbase",
	Short: "Interactively store, view, and delete natural language facts in a vector knowledge base",
	Long: `knowbase keeps one vector collection per embedding model variant in sync
over a single logical record set and serves semantic search over a REPL.

Type facts at the prompt to store them. Use '?' to list entries, '?query'
to search, '??query' for details, '?!query' for table names only, '-N' to
delete entry N, '-all' to clear everything, 'r file' to import and
'w file' to export.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			wd, werr := os.Getwd()
			if werr != nil {
				return fmt.Errorf("failed to get working directory: %w", werr)
			}
			cfg, err = config.LoadFromDir(wd)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.ApplyEnv(); err != nil {
			return fmt.Errorf("failed to apply environment overrides: %w", err)
		}

		// Flags win over file and environment.
		if cmd.Flags().Changed("source") {
			cfg.Source = flagSource
		}
		if cmd.Flags().Changed("load") {
			cfg.LoadFile = flagLoad
		}
		if cmd.Flags().Changed("model") {
			cfg.Variants.Primary = flagModel
		}
		if cmd.Flags().Changed("schemas") {
			cfg.Schemas = flagSchemas
		}
		if cmd.Flags().Changed("store") {
			cfg.Store.Path = flagStore
		}
		if dontClear {
			cfg.ClearOnStart = false
		}
		if memoryStore {
			cfg.Store.Memory = true
		}
		emoji.SetDisabled(noEmoji)

		return nil
	},
	RunE: runREPL,
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the effective configuration to a YAML file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "knowbase.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := cfg.Save(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote configuration to %s\n", emoji.Get("success"), path)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./knowbase.yaml)")
	rootCmd.Flags().StringVar(&flagSource, "source", "user", "source tag for metadata of facts typed at the prompt")
	rootCmd.Flags().StringVar(&flagLoad, "load", "", "load data from JSON file on startup")
	rootCmd.Flags().StringVarP(&flagModel, "model", "m", "bge-base", "primary embedding model: bge-base|bge-large|e5-large or bb|bl|e5")
	rootCmd.Flags().StringSliceVarP(&flagSchemas, "schemas", "s", nil, "schemas to include in search results ('all' to include everything)")
	rootCmd.Flags().StringVar(&flagStore, "store", "", "path to the store database file")
	rootCmd.Flags().BoolVar(&dontClear, "dont-clear", false, "don't clear collections on startup (default is to clear)")
	rootCmd.Flags().BoolVar(&memoryStore, "memory", false, "keep collections in memory only")
	rootCmd.Flags().BoolVar(&noEmoji, "no-emoji", false, "plain output without emoji or colors")
}

func runREPL(cmd *cobra.Command, args []string) error {
	logger := applog.New(cfg.Logging.Level, cfg.Logging.Format)

	set, closeStore, err := buildCollectionSet(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	searcher := usecase.NewSearcher(set, cfg.SchemaPatterns(), logger)
	transfer := usecase.NewTransfer(set, logger)

	repl := NewREPL(set, searcher, transfer, cfg, logger, os.Stdin, os.Stdout)
	return repl.Run()
}

// buildCollectionSet wires one embedder and one collection per active
// variant. A variant whose embedder fails to initialize is fatal under
// require_all, otherwise dropped with an explicit warning.
func buildCollectionSet(cfg *config.Config, logger *slog.Logger) (*usecase.CollectionSet, func(), error) {
	closeStore := func() {}

	var bolt *store.BoltStore
	if !cfg.Store.Memory {
		if err := cfg.EnsureStoreDir(); err != nil {
			return nil, nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		st, err := store.NewBoltStore(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		bolt = st
		closeStore = func() { st.Close() }
	}

	primary := variant.Resolve(cfg.Variants.Primary)

	var handles []usecase.VariantHandle
	for _, name := range cfg.Variants.Active {
		v, ok := variant.Lookup(name)
		if !ok {
			closeStore()
			return nil, nil, fmt.Errorf("unknown variant in config: %s", name)
		}

		embedder, err := buildEmbedder(cfg, v)
		if err != nil {
			if cfg.Variants.RequireAll || v.Name == primary.Name {
				closeStore()
				return nil, nil, fmt.Errorf("%w: %s: %v", domain.ErrModelUnavailable, v.Name, err)
			}
			logger.Warn("variant unavailable, continuing without it", "variant", v.Name, "error", err)
			continue
		}

		var col port.Collection
		if bolt != nil {
			c, err := bolt.Collection(v.CollectionName(cfg.CollectionSet), v.Dimension)
			if err != nil {
				closeStore()
				return nil, nil, err
			}
			col = c
		} else {
			col = store.NewMemoryCollection(v.Dimension)
		}

		handles = append(handles, usecase.VariantHandle{
			Variant:    v,
			Embedder:   embedder,
			Collection: col,
		})
	}

	set, err := usecase.NewCollectionSet(handles, primary.Name, logger)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return set, closeStore, nil
}

func buildEmbedder(cfg *config.Config, v variant.Variant) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "", "local":
		return embedding.NewLocalEmbedder(v.ModelID, v.Dimension), nil
	case "openai":
		return embedding.NewOpenAIEmbedder(embedding.Config{
			APIKeyEnv: cfg.Embedding.APIKeyEnv,
			BaseURL:   cfg.Embedding.BaseURL,
			Model:     v.ModelID,
			Dimension: v.Dimension,
			Timeout:   time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
}
