package config

const (
	defaultContentDir           = "~/.local/share/dialtone/content"
	defaultAudioDirName         = "audio"
	defaultLogDir               = "~/.local/share/dialtone/logs"
	defaultFetchTimeout         = 30
	defaultRetryAttempts        = 3
	defaultRetryDelay           = 5
	defaultMaxBodyBytes         = 256 * 1024
	defaultFullValidityHours    = 24
	defaultLightweightCheckMins = 15
	defaultSyncCheckInterval    = 60
	defaultFileTimeout          = 60
	defaultChunkSizeKiB         = 32
	defaultQueueCapacity        = 64
	defaultDrainInterval        = 2
	defaultDrainsPerSecond      = 1.0
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ContentDir: defaultContentDir,
			LogDir:     defaultLogDir,
		},
		Catalog: Catalog{
			FetchTimeout:         defaultFetchTimeout,
			RetryAttempts:        defaultRetryAttempts,
			RetryDelay:           defaultRetryDelay,
			MaxBodyBytes:         defaultMaxBodyBytes,
			FullValidityHours:    defaultFullValidityHours,
			LightweightCheckMins: defaultLightweightCheckMins,
			SyncCheckInterval:    defaultSyncCheckInterval,
		},
		Downloads: Downloads{
			FileTimeout:     defaultFileTimeout,
			ChunkSizeKiB:    defaultChunkSizeKiB,
			Capacity:        defaultQueueCapacity,
			DrainInterval:   defaultDrainInterval,
			DrainsPerSecond: defaultDrainsPerSecond,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			SyncErrors:     true,
			QueueDrained:   false,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
