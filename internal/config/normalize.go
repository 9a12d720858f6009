package config

import (
	"os"
	"strings"
)

// Environment variables that override secret config fields.
const (
	EnvTelegramToken    = "TELEGRAM_BOT_TOKEN"
	EnvTranslatorAPIKey = "TRANSLATOR_API_KEY"
)

// normalize expands paths, applies environment overrides for secrets, and
// trims string fields so Validate sees canonical values.
func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	if env := strings.TrimSpace(os.Getenv(EnvTelegramToken)); env != "" {
		c.Telegram.Token = env
	}
	if env := strings.TrimSpace(os.Getenv(EnvTranslatorAPIKey)); env != "" {
		c.Translator.APIKey = env
	}

	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	c.Telegram.LocalAPIURL = strings.TrimRight(strings.TrimSpace(c.Telegram.LocalAPIURL), "/")
	c.Translator.APIKey = strings.TrimSpace(c.Translator.APIKey)
	c.Translator.BaseURL = strings.TrimSpace(c.Translator.BaseURL)
	c.Translator.Model = strings.TrimSpace(c.Translator.Model)
	c.Whisper.Binary = strings.TrimSpace(c.Whisper.Binary)
	c.Whisper.Model = strings.TrimSpace(c.Whisper.Model)
	c.Whisper.Device = strings.TrimSpace(c.Whisper.Device)
	c.Whisper.ComputeType = strings.TrimSpace(c.Whisper.ComputeType)
	c.FFmpeg.FFmpegBinary = strings.TrimSpace(c.FFmpeg.FFmpegBinary)
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)

	if c.Translator.BatchSize <= 0 {
		c.Translator.BatchSize = defaultTranslatorBatchSize
	}
	if c.Translator.MaxAttempts <= 0 {
		c.Translator.MaxAttempts = defaultTranslatorMaxAttempts
	}
	if c.Workflow.WorkerCount <= 0 {
		c.Workflow.WorkerCount = defaultWorkerCount
	}
	if c.Workflow.QueueBound < 0 {
		c.Workflow.QueueBound = 0
	}
	if c.Workflow.StageTimeoutSeconds <= 0 {
		c.Workflow.StageTimeoutSeconds = defaultStageTimeout
	}
	if c.FFmpeg.TimeoutSeconds <= 0 {
		c.FFmpeg.TimeoutSeconds = defaultFFmpegTimeout
	}
	return nil
}
