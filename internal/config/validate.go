package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranslator(); err != nil {
		return err
	}
	if err := c.validateWhisper(); err != nil {
		return err
	}
	if err := c.validateFFmpeg(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranslator() error {
	if c.Translator.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/sublingo/config.toml"
		}
		return fmt.Errorf("translator.api_key is required. Set %s env var or edit %s (create with 'sublingo config init')", EnvTranslatorAPIKey, defaultPath)
	}
	if c.Translator.BaseURL == "" {
		return errors.New("translator.base_url must be set")
	}
	if c.Translator.Model == "" {
		return errors.New("translator.model must be set")
	}
	if c.Translator.BatchSize <= 0 {
		return errors.New("translator.batch_size must be positive")
	}
	if c.Translator.MaxAttempts <= 0 {
		return errors.New("translator.max_attempts must be positive")
	}
	return nil
}

func (c *Config) validateWhisper() error {
	if c.Whisper.Binary == "" {
		return errors.New("whisper.binary must be set")
	}
	if c.Whisper.Model == "" {
		return errors.New("whisper.model must be set")
	}
	if c.Whisper.BeamSize < 0 {
		return errors.New("whisper.beam_size must not be negative")
	}
	return nil
}

func (c *Config) validateFFmpeg() error {
	if c.FFmpeg.FFmpegBinary == "" {
		return errors.New("ffmpeg.ffmpeg_binary must be set")
	}
	if c.FFmpeg.FFprobeBinary == "" {
		return errors.New("ffmpeg.ffprobe_binary must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.WorkerCount <= 0 {
		return errors.New("workflow.worker_count must be positive")
	}
	if c.Workflow.QueuePollInterval < 0 {
		return errors.New("workflow.queue_poll_interval must not be negative")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxVideoDurationSeconds <= 0 {
		return errors.New("limits.max_video_duration_seconds must be positive")
	}
	return nil
}
