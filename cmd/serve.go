package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/docchat/docchat/ingest/extract"
	"github.com/ZanzyTHEbar/docchat/docchat/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve chat sessions over HTTP",
	Long: `Start the HTTP API. Each client creates a session, sets a username and then
posts messages and multipart uploads (field "files") to it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(os.Stderr)
		if err != nil {
			return err
		}

		addr := a.cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		srv := server.New(a.sessions, server.Options{
			Mode:           a.cfg.Server.Mode,
			Model:          a.gateway.Model(),
			MaxUploadBytes: a.cfg.Ingest.MaxUploadBytes,
			OCR:            extract.OCRAvailable(),
			SessionIdle:    a.cfg.Server.SessionIdleTimeout,
		}, a.logger)
		if !extract.OCRAvailable() {
			a.logger.Warn().Msg("built without ocr support: image uploads will be reported as unavailable (rebuild with -tags tesseract)")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
