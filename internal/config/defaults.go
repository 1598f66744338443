package config

const (
	defaultWatchDir            = "~/.local/share/corral/watch"
	defaultLibraryDir          = "~/library"
	defaultDataDir             = "~/.local/share/corral"
	defaultLogDir              = "~/.local/share/corral/logs"
	defaultAPIBind             = "127.0.0.1:7519"
	defaultLockLeaseSeconds    = 1800
	defaultPollIntervalSeconds = 1
	defaultPageSize            = 512
	defaultHashBufferKiB       = 256
	defaultWorkerCount         = 4
	defaultWorkerPollSeconds   = 1
	defaultNtfyRequestTimeout  = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:   defaultWatchDir,
			LibraryDir: defaultLibraryDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Ingest: Ingest{
			LockLeaseSeconds:    defaultLockLeaseSeconds,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			PageSize:            defaultPageSize,
			HashBufferKiB:       defaultHashBufferKiB,
		},
		Workers: Workers{
			Count:               defaultWorkerCount,
			PollIntervalSeconds: defaultWorkerPollSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			Runs:           true,
			Items:          false,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
