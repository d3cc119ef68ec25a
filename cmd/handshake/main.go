package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alienxp03/handshake/internal/config"
	"github.com/alienxp03/handshake/internal/core"
	"github.com/alienxp03/handshake/internal/llm"
	"github.com/alienxp03/handshake/internal/persona"
	"github.com/alienxp03/handshake/internal/simulation"
	"github.com/alienxp03/handshake/internal/storage"
)

var (
	dbPath       string
	cfgPath      string
	providerName string
	debug        bool
	appConfig    *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "handshake",
	Short: "Simulated networking conversations between AI personas",
	Long: `handshake runs short conversations between two AI agents, each speaking
for a professional persona, and scores how promising the connection is.

Start a run from the CLI with "handshake run maya jonas" or serve the HTTP API
with "handshake serve".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd.Name() == "serve")

		var err error
		if cfgPath != "" {
			appConfig, err = config.LoadFrom(cfgPath)
		} else {
			appConfig, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if dbPath != "" {
			appConfig.Storage.Path = dbPath
		}
		if providerName != "" {
			spec, err := core.ParseModelSpec(providerName)
			if err != nil {
				return err
			}
			if _, ok := appConfig.LLM.Providers[spec.Provider]; !ok {
				return fmt.Errorf("unknown provider: %s", spec.Provider)
			}
			appConfig.LLM.Provider = spec.Provider
			if spec.Model != "" {
				appConfig.LLM.Model = spec.Model
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: ~/.handshake/handshake.db)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default: ~/.handshake/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&providerName, "provider", "", "Provider and optional model as provider[/model] (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(personasCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging installs a JSON slog handler. Interactive commands log to
// stderr at warn level so they do not interleave with the transcript.
func setupLogging(server bool) {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	out := os.Stderr
	if server {
		opts.Level = slog.LevelInfo
		out = os.Stdout
	}
	if debug {
		opts.Level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(out, opts)))
}

func getStorage() (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(appConfig.Storage.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, err
	}

	return store, nil
}

// personaChain resolves participants from the database first, then the
// configured persona directory, then the built-in demo personas.
func personaChain(store *storage.SQLiteStorage) (persona.Chain, error) {
	chain := persona.Chain{persona.NewStoreProvider(store)}

	if appConfig.PersonasDir != "" {
		catalog, err := persona.LoadDir(appConfig.PersonasDir)
		if err != nil {
			return nil, err
		}
		slog.Debug("Loaded persona catalog", "dir", appConfig.PersonasDir, "personas", catalog.Len())
		chain = append(chain, catalog)
	}

	return append(chain, persona.Builtin{}), nil
}

// newEngine wires the configured provider, retry policy and personas into a
// simulation engine.
func newEngine(ctx context.Context, store *storage.SQLiteStorage) (*simulation.Engine, *llm.Registry, persona.Chain, error) {
	registry, err := appConfig.CreateRegistry(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	provider, err := registry.Get(appConfig.LLM.Provider)
	if err != nil {
		return nil, nil, nil, err
	}

	personas, err := personaChain(store)
	if err != nil {
		return nil, nil, nil, err
	}

	client := llm.NewRetryingClient(provider, llm.WithRetryPolicy(appConfig.RetryPolicy()))
	sim := appConfig.Simulation
	engine := simulation.New(store, personas, client,
		simulation.WithModel(appConfig.LLM.Model),
		simulation.WithDefaultMaxTurns(sim.MaxTurns),
		simulation.WithMaxConsecutiveFailures(sim.MaxConsecutiveFailures),
		simulation.WithRunTimeout(sim.RunTimeout),
	)

	return engine, registry, personas, nil
}

func findSimulationByPrefix(ctx context.Context, store storage.Storage, prefix string) (string, error) {
	if _, err := store.GetSimulation(ctx, prefix); err == nil {
		return prefix, nil
	}

	sims, err := store.ListSimulations(ctx, 200, 0)
	if err != nil {
		return "", err
	}
	var match string
	for _, s := range sims {
		if strings.HasPrefix(s.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("ambiguous simulation id: %s", prefix)
			}
			match = s.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("simulation not found: %s", prefix)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
