package config

const (
	defaultDataDir        = "~/.local/share/trimsync"
	defaultUploadDir      = "~/.local/share/trimsync/uploads"
	defaultWorkDir        = "~/.local/share/trimsync/work"
	defaultOutputDir      = "~/.local/share/trimsync/output"
	defaultWatchDir       = "~/.local/share/trimsync/watch"
	defaultLogDir         = "~/.local/share/trimsync/logs"
	defaultAPIBind        = "127.0.0.1:8716"
	defaultFFmpeg         = "ffmpeg"
	defaultFFprobe        = "ffprobe"
	defaultPython         = "python3"
	defaultAnalyzerScript = "ai_worker.analyze"
	defaultWhisperModel   = "base.en"
	defaultModelDir       = "~/.cache/trimsync/models"
	defaultWorkers        = 1
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			UploadDir: defaultUploadDir,
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			WatchDir:  defaultWatchDir,
			LogDir:    defaultLogDir,
			APIBind:   defaultAPIBind,
		},
		Tools: Tools{
			FFmpeg:         defaultFFmpeg,
			FFprobe:        defaultFFprobe,
			Python:         defaultPython,
			AnalyzerScript: defaultAnalyzerScript,
			WhisperModel:   defaultWhisperModel,
			ModelDir:       defaultModelDir,
		},
		Workflow: Workflow{
			Workers:           defaultWorkers,
			WatchIngestEnable: false,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
