package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/qualgate/internal/server"
	"github.com/ShayCichocki/qualgate/internal/validator"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review and escalation API over HTTP",
	Long: `Serve exposes open review tickets, execution progress and escalation over
HTTP. The review inbox is watched while the server runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := openApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	inbox, err := validator.NewInbox(validator.InboxDir(a.cfg.Root), a.pipeline.Queue(), a.logger)
	if err != nil {
		return err
	}
	defer inbox.Close()
	if _, err := inbox.Scan(ctx); err != nil {
		return err
	}
	if err := inbox.Watch(ctx); err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	handler := server.New(server.Config{Service: a.pipeline, Logger: a.logger.WithPrefix("http")})
	printStatus("→", fmt.Sprintf("Listening on %s (Ctrl+C to stop)", addr), color.FgCyan)
	return server.ListenAndServe(ctx, addr, handler)
}
