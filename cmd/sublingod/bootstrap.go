package main

import (
	"log/slog"
	"path/filepath"

	"sublingo/internal/config"
	"sublingo/internal/daemon"
	"sublingo/internal/deliver"
	"sublingo/internal/ingest"
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
