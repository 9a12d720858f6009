package config

const (
	defaultWorkDir                 = "~/.local/share/sublingo/work"
	defaultLogDir                  = "~/.local/share/sublingo/logs"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultTranslatorBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultTranslatorModel         = "google/gemini-2.0-flash-001"
	defaultTranslatorTimeout       = 90
	defaultTranslatorBatchSize     = 10
	defaultTranslatorMaxAttempts   = 3
	defaultWhisperBinary           = "whisper-ctranslate2"
	defaultWhisperModel            = "large-v3"
	defaultWhisperDevice           = "auto"
	defaultWhisperComputeType      = "float16"
	defaultWhisperBeamSize         = 5
	defaultFFmpegBinary            = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultFFmpegTimeout           = 600
	defaultWorkerCount             = 2
	defaultQueueBound              = 8
	defaultQueuePollInterval       = 2
	defaultStageTimeout            = 900
	defaultHeartbeatInterval       = 15
	defaultMaxVideoDuration        = 600
	defaultMinFreeMB               = 512
	defaultTelegramRequestTimeout  = 30
	defaultTelegramPollTimeout     = 50
	defaultTelegramUploadTimeout   = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Telegram: Telegram{
			RequestTimeout: defaultTelegramRequestTimeout,
			PollTimeout:    defaultTelegramPollTimeout,
			UploadTimeout:  defaultTelegramUploadTimeout,
		},
		Translator: Translator{
			BaseURL:        defaultTranslatorBaseURL,
			Model:          defaultTranslatorModel,
			TimeoutSeconds: defaultTranslatorTimeout,
			BatchSize:      defaultTranslatorBatchSize,
			MaxAttempts:    defaultTranslatorMaxAttempts,
		},
		Whisper: Whisper{
			Binary:      defaultWhisperBinary,
			Model:       defaultWhisperModel,
			Device:      defaultWhisperDevice,
			ComputeType: defaultWhisperComputeType,
			BeamSize:    defaultWhisperBeamSize,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:   defaultFFmpegBinary,
			FFprobeBinary:  defaultFFprobeBinary,
			TimeoutSeconds: defaultFFmpegTimeout,
		},
		Workflow: Workflow{
			WorkerCount:         defaultWorkerCount,
			QueueBound:          defaultQueueBound,
			QueuePollInterval:   defaultQueuePollInterval,
			StageTimeoutSeconds: defaultStageTimeout,
			HeartbeatInterval:   defaultHeartbeatInterval,
		},
		Limits: Limits{
			MaxVideoDurationSeconds: defaultMaxVideoDuration,
			MinFreeMB:               defaultMinFreeMB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
