package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sublingo/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:         "config",
		Short:       "Configuration utilities",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := os.WriteFile(target, []byte(config.SampleConfig()), 0o644); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set telegram.token and translator.api_key (or export TELEGRAM_BOT_TOKEN and TRANSLATOR_API_KEY) before starting the daemon.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Show the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file does not exist; showing defaults")
			}

			rows := [][]string{
				{"paths.work_dir", cfg.Paths.WorkDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"telegram.token set", yesNo(strings.TrimSpace(cfg.Telegram.Token) != "")},
				{"telegram.local_api_url", cfg.Telegram.LocalAPIURL},
				{"translator.api_key set", yesNo(strings.TrimSpace(cfg.Translator.APIKey) != "")},
				{"translator.base_url", cfg.Translator.BaseURL},
				{"translator.model", cfg.Translator.Model},
				{"translator.batch_size", strconv.Itoa(cfg.Translator.BatchSize)},
				{"whisper.binary", cfg.Whisper.Binary},
				{"whisper.model", cfg.Whisper.Model},
				{"ffmpeg.ffmpeg_binary", cfg.FFmpeg.FFmpegBinary},
				{"ffmpeg.ffprobe_binary", cfg.FFmpeg.FFprobeBinary},
				{"workflow.worker_count", strconv.Itoa(cfg.Workflow.WorkerCount)},
				{"workflow.queue_bound", strconv.Itoa(cfg.Workflow.QueueBound)},
				{"limits.max_video_duration_seconds", strconv.Itoa(cfg.Limits.MaxVideoDurationSeconds)},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
			}
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "path", "p", "", "Configuration file path")
	return cmd
}
