package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voting-ledger/api"
	"voting-ledger/service"
)

func init() {
	flags := serveCmd.Flags()
	flags.IntVar(&cfg.Port, "port", cfg.Port, "Server port")
	flags.Uint8Var(&cfg.Difficulty, "difficulty", cfg.Difficulty, "Journal mining difficulty in leading zero bytes")
	flags.IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "Transaction queue capacity")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "Transaction worker count")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := openNode(cfg)
		if err != nil {
			return err
		}
		defer n.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		defer stop()

		queue := service.NewTransactionQueue(n.ledger, cfg.QueueSize, cfg.Workers,
			n.log.With().Str("component", "queue").Logger())
		queue.Start()
		defer queue.Stop()

		server := api.NewServer(n.ledger, queue, n.log.With().Str("component", "api").Logger())
		err = server.Serve(ctx, api.APIConfig{Port: cfg.Port, ShutdownTimeout: cfg.ShutdownTimeout})
		n.log.Info().Msg("server shutdown completed")
		return err
	},
}
