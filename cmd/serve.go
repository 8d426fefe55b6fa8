package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dataloom-cli/internal/history"
	"github.com/KaramelBytes/dataloom-cli/internal/server"
)

var (
	srvAddr        string
	srvToken       string
	srvAllowLocal  bool
	srvMaxUploadMB int
	srvOutputDir   string
	srvRetries     int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis pipeline over HTTP",
	Long: `Serve exposes POST /v1/run, GET /v1/artifacts/{name}, GET /v1/history and GET /health.

The bearer token may also be given with DATALOOM_SERVER_TOKEN.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := effectiveConfig()
		rt, provider, err := buildRuntime(c, runtimeOptions{ProviderFlag: flagProvider})
		if err != nil {
			return err
		}
		model := selectModel(c, flagModel)
		p, store := newPipeline(c, pipelineOptions{Runtime: rt, Model: model, Retries: srvRetries, OutputDir: srvOutputDir})

		var hist *history.Store
		hist, err = openHistory(c)
		if err != nil {
			logger.Warn("history unavailable", zap.Error(err))
			hist = nil
		}
		if hist != nil {
			defer hist.Close()
		}

		addr := srvAddr
		if addr == "" {
			addr = c.ServerAddr
		}
		token := srvToken
		if token == "" {
			token = os.Getenv("DATALOOM_SERVER_TOKEN")
		}
		if token == "" && !isLoopback(addr) {
			logger.Warn("serving without a bearer token on a non-loopback address", zap.String("addr", addr))
		}

		handler := server.NewHandler(server.Deps{
			Runner:          p,
			Artifacts:       store,
			History:         hist,
			Logger:          logger.Named("server"),
			Token:           token,
			AllowLocalPaths: srvAllowLocal,
			MaxUploadBytes:  int64(srvMaxUploadMB) << 20,
		})

		logger.Info("starting server",
			zap.String("provider", provider),
			zap.String("model", model),
			zap.String("output_dir", store.Dir),
			zap.Bool("history", hist != nil))
		return server.Serve(cmd.Context(), addr, handler, logger.Named("server"))
	},
}

func isLoopback(addr string) bool {
	for _, p := range []string{"127.0.0.1:", "localhost:", "[::1]:"} {
		if len(addr) >= len(p) && addr[:len(p)] == p {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&srvAddr, "addr", "", "listen address (default from config server_addr)")
	serveCmd.Flags().StringVar(&srvToken, "token", "", "require this bearer token on /v1 routes")
	serveCmd.Flags().BoolVar(&srvAllowLocal, "allow-local-paths", false, "accept JSON run requests naming a file on this machine")
	serveCmd.Flags().IntVar(&srvMaxUploadMB, "max-upload-mb", 32, "maximum request body size in MiB")
	serveCmd.Flags().StringVar(&srvOutputDir, "output-dir", "", "directory for plot files (default from config)")
	serveCmd.Flags().IntVar(&srvRetries, "max-retries", 0, "maximum attempts per query (default from config)")
}
