package config

const (
	defaultOutputDir            = "~/.local/share/podforge/output"
	defaultLogDir               = "~/.local/share/podforge/logs"
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "deepseek/deepseek-chat-v3.1"
	defaultLLMTimeoutSeconds    = 120
	defaultSearchBaseURL        = "https://api.duckduckgo.com"
	defaultSearchMaxResults     = 5
	defaultSearchTimeoutSeconds = 10
	defaultTTSEngine            = "neural"
	defaultTTSSampleRateHz      = 16000
	defaultTTSWorkers           = 2
	defaultHostVoice            = "Joanna"
	defaultExpertVoice          = "Matthew"
	defaultStageTimeoutSeconds  = 600
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			Title:          "podforge",
		},
		Search: Search{
			BaseURL:        defaultSearchBaseURL,
			MaxResults:     defaultSearchMaxResults,
			TimeoutSeconds: defaultSearchTimeoutSeconds,
		},
		TTS: TTS{
			Engine:       defaultTTSEngine,
			SampleRateHz: defaultTTSSampleRateHz,
			Workers:      defaultTTSWorkers,
			HostVoice:    defaultHostVoice,
			ExpertVoice:  defaultExpertVoice,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Stages:         true,
			Completion:     true,
			Errors:         true,
		},
		Pipeline: Pipeline{
			StageTimeoutSeconds: defaultStageTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
