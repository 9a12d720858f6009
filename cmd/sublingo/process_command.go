package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sublingo/internal/ingest"
	"sublingo/internal/logging"
	"sublingo/internal/media"
	"sublingo/internal/queue"
	"sublingo/internal/services"
	"sublingo/internal/stage"
	"sublingo/internal/subtitle"
	"sublingo/internal/transcribe"
	"sublingo/internal/translate"
	"sublingo/internal/workflow"
	"sublingo/internal/workspace"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "process <video>",
		Short: "Run the subtitle pipeline once on a local video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			source, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			if info, err := os.Stat(source); err != nil {
				return fmt.Errorf("stat source: %w", err)
			} else if info.IsDir() {
				return fmt.Errorf("%s is a directory", source)
			}

			dest := outputDir
			if dest == "" {
				dest = filepath.Dir(source)
			}
			dest, err = filepath.Abs(dest)
			if err != nil {
				return fmt.Errorf("resolve output directory: %w", err)
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

			workspaces := workspace.NewManager(cfg)
			mediaService := media.NewService(cfg, logger)
			transcriber := transcribe.NewService(cfg)
			translator := translate.NewTranslator(translate.NewClient(translate.ClientConfig{
				APIKey:         cfg.Translator.APIKey,
				BaseURL:        cfg.Translator.BaseURL,
				Model:          cfg.Translator.Model,
				TimeoutSeconds: cfg.Translator.TimeoutSeconds,
			}), cfg, logger)

			local := &localDeliverHandler{destDir: dest}

			manager := workflow.NewManager(cfg, store, workspaces, nil, logger)
			manager.ConfigureStages(workflow.StageSet{
				Ingest:     ingest.NewHandler(cfg, workspaces, nil, mediaService, logger),
				Extract:    media.NewExtractHandler(mediaService),
				Transcribe: transcribe.NewStageHandler(transcriber),
				Translate:  translate.NewStageHandler(translator),
				Synthesize: subtitle.NewStageHandler(),
				Mux:        media.NewMuxHandler(mediaService),
				Deliver:    local,
			})

			job := &queue.Job{
				CorrelationID: uuid.NewString(),
				FileName:      filepath.Base(source),
				SourcePath:    source,
			}
			job.InitProgress("Queued", "waiting for a worker")
			job, err = store.NewJob(cmd.Context(), job)
			if err != nil {
				return fmt.Errorf("enqueue job: %w", err)
			}

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if err := manager.Start(runCtx); err != nil {
				return err
			}
			defer manager.Stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processing %s\n", source)

			final, err := waitForTerminal(cmd.Context(), store, job.ID)
			if err != nil {
				return err
			}
			if final.Status != queue.StatusCompleted {
				if final.ErrorMessage != "" {
					return fmt.Errorf("job %s: %s", final.Status, final.ErrorMessage)
				}
				return fmt.Errorf("job finished with status %s", final.Status)
			}
			if final.NoSpeech {
				fmt.Fprintln(out, "No speech detected; the video was copied unchanged.")
			}
			fmt.Fprintf(out, "Wrote %s\n", local.deliveredPath())
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for the subtitled video (defaults to the source directory)")
	return cmd
}

func waitForTerminal(ctx context.Context, store *queue.Store, id int64) (*queue.Job, error) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		job, err := store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("job %d disappeared from the queue", id)
		}
		if job.IsTerminal() {
			return job, nil
		}
	}
}

// localDeliverHandler replaces the chat upload stage for one-shot runs: the
// finished video is copied out of the workspace before cleanup removes it.
type localDeliverHandler struct {
	destDir   string
	delivered string
	logger    *slog.Logger
}

func (h *localDeliverHandler) SetLogger(logger *slog.Logger) {
	if h != nil {
		h.logger = logger
	}
}

func (h *localDeliverHandler) Prepare(ctx context.Context, job *queue.Job) error {
	if job.OutputFile == "" {
		return services.Wrap(services.ErrValidation, "deliver", "prepare", "job has no output file", nil)
	}
	if _, err := os.Stat(job.OutputFile); err != nil {
		return services.Wrap(services.ErrValidation, "deliver", "prepare", "output file missing", err)
	}
	return nil
}

func (h *localDeliverHandler) Execute(ctx context.Context, job *queue.Job) error {
	target := filepath.Join(h.destDir, filepath.Base(job.OutputFile))
	if err := copyFile(job.OutputFile, target); err != nil {
		return services.Wrap(services.ErrResource, "deliver", "copy output", fmt.Sprintf("copy to %s", target), err)
	}
	h.delivered = target
	return nil
}

func (h *localDeliverHandler) HealthCheck(ctx context.Context) stage.Health {
	if h.destDir == "" {
		return stage.Unhealthy("deliver", "no destination directory")
	}
	return stage.Healthy("deliver")
}

func (h *localDeliverHandler) deliveredPath() string {
	return h.delivered
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
