package main

import (
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"sublingo/internal/config"
	"sublingo/internal/daemon"
	"sublingo/internal/deliver"
	"sublingo/internal/ingest"
	"sublingo/internal/ipc"
	"sublingo/internal/logging"
	"sublingo/internal/media"
	"sublingo/internal/notifications"
	"sublingo/internal/queue"
	"sublingo/internal/subtitle"
	"sublingo/internal/telegram"
	"sublingo/internal/transcribe"
	"sublingo/internal/translate"
	"sublingo/internal/workflow"
	"sublingo/internal/workspace"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the sublingo daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			store, err := queue.Open()
			if err != nil {
				return err
			}
			defer store.Close()

			d, err := buildDaemon(cfg, store, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			ipcServer, err := ipc.NewServer(signalCtx, buildSocketPath(cfg), d, logger)
			if err != nil {
				return err
			}
			defer ipcServer.Close()
			ipcServer.Serve()

			if err := d.Start(signalCtx); err != nil {
				return err
			}

			<-signalCtx.Done()
			logger.Info("sublingo daemon shutting down")
			return nil
		},
	}
}

func buildDaemon(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	bot := telegram.NewClient(cfg, logger)
	notifier := notifications.NewService(bot, logger)
	workspaces := workspace.NewManager(cfg)

	mediaService := media.NewService(cfg, logger)
	transcriber := transcribe.NewService(cfg)
	translator := translate.NewTranslator(translate.NewClient(translate.ClientConfig{
		APIKey:         cfg.Translator.APIKey,
		BaseURL:        cfg.Translator.BaseURL,
		Model:          cfg.Translator.Model,
		TimeoutSeconds: cfg.Translator.TimeoutSeconds,
	}), cfg, logger)

	manager := workflow.NewManager(cfg, store, workspaces, notifier, logger)
	manager.ConfigureStages(workflow.StageSet{
		Ingest:     ingest.NewHandler(cfg, workspaces, bot, mediaService, logger),
		Extract:    media.NewExtractHandler(mediaService),
		Transcribe: transcribe.NewStageHandler(transcriber),
		Translate:  translate.NewStageHandler(translator),
		Synthesize: subtitle.NewStageHandler(),
		Mux:        media.NewMuxHandler(mediaService),
		Deliver:    deliver.NewHandler(cfg, bot),
	})

	return daemon.New(cfg, store, logger, manager, bot, notifier)
}

func buildSocketPath(cfg *config.Config) string {
	if cfg == nil {
		return filepath.Join("", "sublingo.sock")
	}
	return filepath.Join(cfg.Paths.LogDir, "sublingo.sock")
}
