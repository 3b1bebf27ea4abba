package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"voting-ledger/blockchain"
	"voting-ledger/config"
	"voting-ledger/service"
	"voting-ledger/storage"
	"voting-ledger/storage/postgres"
)

// cfg is loaded from the environment before flags are registered, so flag
// defaults show the environment's values.
var cfg, cfgErr = loadConfig()

func loadConfig() (*config.Config, error) {
	c, err := config.Load()
	if err != nil {
		return &config.Config{LogLevel: "info"}, err
	}
	return c, nil
}

var rootCmd = &cobra.Command{
	Use:           "votingledger",
	Short:         "Single-vote voting ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgErr != nil {
			return cfgErr
		}
		return cfg.Validate()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.StorageDir, "storage", cfg.StorageDir, "Directory for account and journal storage")
	flags.StringVar(&cfg.StoreBackend, "backend", cfg.StoreBackend, "Account store backend (bolt|postgres)")
	flags.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "Postgres connection string")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log := cfg.NewLogger()
		log.Fatal().Err(err).Msg("votingledger failed")
	}
}

// node is the set of components shared by the commands.
type node struct {
	accounts storage.AccountStore
	ledger   *service.LedgerService
	log      zerolog.Logger
}

func openNode(cfg *config.Config) (*node, error) {
	log := cfg.NewLogger()

	if err := os.MkdirAll(cfg.StorageDir, 0755); err != nil {
		return nil, errors.Wrap(err, "create storage directory")
	}

	var accounts storage.AccountStore
	var err error
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		accounts, err = postgres.Open(cfg.PostgresDSN)
	default:
		accounts, err = storage.OpenBolt(filepath.Join(cfg.StorageDir, "accounts.db"))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s account store", cfg.StoreBackend)
	}

	blocks, err := storage.NewJSONStore(filepath.Join(cfg.StorageDir, "journal"))
	if err != nil {
		accounts.Close()
		return nil, errors.Wrap(err, "open journal store")
	}
	journal, err := blockchain.NewJournal(blocks, cfg.Difficulty, log.With().Str("component", "journal").Logger())
	if err != nil {
		accounts.Close()
		return nil, err
	}

	ledger, err := service.NewLedgerService(service.Options{
		Accounts: accounts,
		Journal:  journal,
		Logger:   log.With().Str("component", "ledger").Logger(),
	})
	if err != nil {
		accounts.Close()
		return nil, err
	}

	log.Info().
		Str("backend", cfg.StoreBackend).
		Str("storage", cfg.StorageDir).
		Uint8("difficulty", cfg.Difficulty).
		Msg("ledger opened")
	return &node{accounts: accounts, ledger: ledger, log: log}, nil
}

func (n *node) Close() {
	if err := n.accounts.Close(); err != nil {
		n.log.Warn().Err(err).Msg("failed to close account store")
	}
}
