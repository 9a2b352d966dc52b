package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sentientrolodex/backend/internal/config"
	"github.com/sentientrolodex/backend/pkg/agent"
	"github.com/sentientrolodex/backend/pkg/auth"
	"github.com/sentientrolodex/backend/pkg/enrich"
	"github.com/sentientrolodex/backend/pkg/extract"
	"github.com/sentientrolodex/backend/pkg/ingestion"
	"github.com/sentientrolodex/backend/pkg/mcp"
	"github.com/sentientrolodex/backend/pkg/server"
	"github.com/sentientrolodex/backend/pkg/store"
	"github.com/sentientrolodex/backend/pkg/view"
)

var configPath string

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "rolodex",
		Short: "Contract ingestion and relationship backend",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	root.AddCommand(serveCmd(), mcpCmd(), registerCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func openStore(cfg config.Config) (*store.Store, error) {
	sc := store.DefaultConfig(cfg.DataDir)
	sc.SyncWrites = true
	return store.Open(sc)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			s, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer s.Close()

			gen, err := enrich.NewGeminiGenerator(cmd.Context(), cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				return fmt.Errorf("creating enrichment client: %w", err)
			}
			defer gen.Close()

			srv := server.NewServer(
				auth.NewService(s, cfg.JWTSecret),
				ingestion.New(extract.NewExtractor(), enrich.NewAdapter(gen), s),
				view.NewAggregator(s),
				agent.New(gen, s),
				s,
			)

			fmt.Printf("Starting REST API server on %s (data: %s)\n", cfg.Addr, cfg.DataDir)
			if err := srv.Run(cfg.Addr); err != nil {
				log.Fatalf("Server failed: %v", err)
			}
			return nil
		},
	}
}

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <email> <password>",
		Short: "Create a user without going through the REST API",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer s.Close()

			userID, err := auth.NewService(s, cfg.JWTSecret).Register(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Registered user %s (%s)\n", args[0], userID)
			return nil
		},
	}
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on Stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// MCP mode only reads; writes go through the REST server.
			sc := store.DefaultConfig(cfg.DataDir)
			sc.ReadOnly = true
			s, err := store.Open(sc)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer s.Close()

			return mcp.Run(context.Background(), s)
		},
	}
}
