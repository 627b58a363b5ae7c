package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xhad/hybridrag/pkg/ingest"
	"github.com/xhad/hybridrag/pkg/server"
)

var (
	serveAddr       string
	serveIngest     bool
	serveIngestRoot string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve chat sessions over a websocket",
	Long: `Serve starts a websocket endpoint at /ws and a health check at /health.
Every connection gets its own session with its own chat records, mode and
collection. Ingest requests are rejected unless --ingest is set, and then
only folders below --ingest-root (default: the working directory) are read.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveIngest, "ingest", false, "accept ingest requests")
	serveCmd.Flags().StringVar(&serveIngestRoot, "ingest-root", "", "folder ingest requests are confined to")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var ingestor *ingest.Ingestor
	root := cfg.Server.IngestRoot
	if serveIngestRoot != "" {
		root = serveIngestRoot
	}
	if serveIngest || cfg.Server.Ingest {
		ingestor = a.ingestor
		if root == "" {
			if root, err = os.Getwd(); err != nil {
				return err
			}
		}
	}

	return server.NewWSServer(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IngestRoot:     root,
	}, a.newSession, ingestor).ListenAndServe(ctx)
}
