package config

const (
	defaultWorkspaceDir = "~/.local/share/reelsmith/workspace"
	defaultLibraryDir   = "~/videos/reelsmith"
	defaultLogDir       = "~/.local/share/reelsmith/logs"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultScriptBaseURL  = "https://openrouter.ai/api/v1/chat/completions"
	defaultScriptModel    = "google/gemini-3-flash-preview"
	defaultProviderModel  = "standard"
	defaultTimeoutSeconds = 120

	defaultWordsPerMinute   = 150
	defaultToleranceSeconds = 0.75
	defaultMinRate          = 0.9
	defaultMaxRate          = 1.5
	defaultMaxAttempts      = 4

	defaultBatchSize               = 3
	defaultSegmentedMusicMinScenes = 12
	defaultMusicSegmentScenes      = 4

	defaultFrameRate    = 30
	defaultMusicGain    = 0.22
	defaultEventGain    = 0.55
	defaultBlobMaxBytes = 2 << 20

	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			LibraryDir:   defaultLibraryDir,
			LogDir:       defaultLogDir,
		},
		Providers: Providers{
			Script: Provider{
				BaseURL:        defaultScriptBaseURL,
				Model:          defaultScriptModel,
				TimeoutSeconds: defaultTimeoutSeconds,
			},
			Speech: Provider{Model: defaultProviderModel, TimeoutSeconds: defaultTimeoutSeconds},
			Image:  Provider{Model: defaultProviderModel, TimeoutSeconds: defaultTimeoutSeconds},
			Motion: Provider{Model: defaultProviderModel, TimeoutSeconds: 300},
			Music:  Provider{Model: defaultProviderModel, TimeoutSeconds: defaultTimeoutSeconds},
		},
		Narration: Narration{
			WordsPerMinute:   defaultWordsPerMinute,
			ToleranceSeconds: defaultToleranceSeconds,
			MinRate:          defaultMinRate,
			MaxRate:          defaultMaxRate,
			MaxAttempts:      defaultMaxAttempts,
		},
		Pipeline: Pipeline{
			BatchSize:               defaultBatchSize,
			SegmentedMusicMinScenes: defaultSegmentedMusicMinScenes,
			MusicSegmentScenes:      defaultMusicSegmentScenes,
		},
		Render: Render{
			FrameRate:    defaultFrameRate,
			MusicGain:    defaultMusicGain,
			EventGain:    defaultEventGain,
			BlobMaxBytes: defaultBlobMaxBytes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Review:         true,
			Render:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
