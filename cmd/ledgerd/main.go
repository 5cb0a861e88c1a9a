// Ledger daemon - runs the Merkle ledger core with its staged-ledger driver
// behind a serialising ledger manager.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/minacore/ledger/internal/generator"
	"github.com/minacore/ledger/internal/ledger"
	"github.com/minacore/ledger/internal/staged"
	"github.com/minacore/ledger/internal/storage"
)

const version = "0.1.0"

// Config holds daemon configuration.
type Config struct {
	// Database
	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`
	UseDB      bool   `yaml:"use_db"`

	// Ledger
	Depth int `yaml:"depth"`

	// Generator (standalone exercise mode)
	Generator *generator.Config `yaml:"generator"`
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ledgerd v%s\n", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (*Config, error) {
	cfg := &Config{
		DBHost: "localhost",
		DBPort: 5432,
		DBUser: "ledger",
		DBName: "ledger",
		Depth:  ledger.DefaultDepth,
	}

	var configPath string
	flag.StringVar(&configPath, "config", "", "YAML config file")
	flag.StringVar(&cfg.DBHost, "db-host", cfg.DBHost, "PostgreSQL host")
	flag.IntVar(&cfg.DBPort, "db-port", cfg.DBPort, "PostgreSQL port")
	flag.StringVar(&cfg.DBUser, "db-user", cfg.DBUser, "PostgreSQL user")
	flag.StringVar(&cfg.DBPassword, "db-password", "", "PostgreSQL password")
	flag.StringVar(&cfg.DBName, "db-name", cfg.DBName, "PostgreSQL database name")
	flag.BoolVar(&cfg.UseDB, "use-db", false, "Persist diagnostics and checkpoints to PostgreSQL")
	flag.IntVar(&cfg.Depth, "depth", cfg.Depth, "Merkle ledger depth")
	flag.Parse()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Generator == nil {
		cfg.Generator = generator.DefaultConfig()
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *Config) error {
	fmt.Println("Initializing ledger core...")

	var store staged.DiagnosticStore
	if cfg.UseDB {
		fmt.Println("Connecting to database...")
		pg, err := storage.NewPostgresStore(ctx, &storage.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Database: cfg.DBName,
			SSLMode:  "disable",
			MaxConns: 20,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pg.Close()
		store = pg
		fmt.Println("Database connected.")
	} else {
		store = storage.NewMemoryStore()
	}

	genesis := ledger.NewRoot(cfg.Depth, nil)
	fuzzer, err := generator.New(cfg.Generator)
	if err != nil {
		return err
	}
	if err := fuzzer.SeedLedger(genesis); err != nil {
		return err
	}

	driver := staged.NewDriver(genesis, staged.NewMemoryScanState(), store)
	manager := ledger.NewManager(genesis)
	defer manager.Close()

	root := genesis.MerkleRoot()
	fmt.Printf("Genesis ledger ready. Root %x, %d accounts.\n",
		root.Bytes(), len(genesis.AccountIDs()))
	_ = driver

	fmt.Println("Ledger core started. Press Ctrl+C to stop.")
	<-ctx.Done()

	fmt.Println("Stopped.")
	return nil
}
