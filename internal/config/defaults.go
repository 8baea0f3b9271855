package config

const (
	defaultDataDir            = "~/.local/share/markercut"
	defaultLogDir             = "~/.local/share/markercut/logs"
	defaultCatalogDir         = "~/.local/share/markercut/catalog"
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultDownloaderBinary   = "yt-dlp"
	defaultFrameExt           = "jpg"
	defaultCoarseFPS          = 1
	defaultFineFPS            = 30
	defaultMarginSeconds      = 2
	defaultMinDurationSeconds = 4.0
	defaultBlackBelow         = 20
	defaultWhiteAbove         = 220
	defaultNoisyPercent       = 1
	defaultURLTemplate        = "https://www.youtube.com/watch?v=%s"
	defaultSourceFormat       = "mp4[height=1080]+bestaudio"
	defaultSourceRetries      = 5
	defaultRetryDelaySeconds  = 5
	defaultCompileOutput      = "combined.mkv"
	defaultCompileMode        = CompileModeFilter
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Compilation strategies understood by the concat command.
const (
	CompileModeFilter  = "filter"
	CompileModeDemuxer = "demuxer"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
			CatalogDirs: []string{defaultCatalogDir},
		},
		Tools: Tools{
			FFmpeg:     defaultFFmpegBinary,
			FFprobe:    defaultFFprobeBinary,
			Downloader: defaultDownloaderBinary,
			FrameExt:   defaultFrameExt,
		},
		Detection: Detection{
			CoarseFPS:          defaultCoarseFPS,
			FineFPS:            defaultFineFPS,
			MarginSeconds:      defaultMarginSeconds,
			MinDurationSeconds: defaultMinDurationSeconds,
			BlackBelow:         defaultBlackBelow,
			WhiteAbove:         defaultWhiteAbove,
			NoisyPercent:       defaultNoisyPercent,
		},
		Source: Source{
			URLTemplate:       defaultURLTemplate,
			Format:            defaultSourceFormat,
			Retries:           defaultSourceRetries,
			RetryDelaySeconds: defaultRetryDelaySeconds,
		},
		Compile: Compile{
			Output:   defaultCompileOutput,
			Mode:     defaultCompileMode,
			Captions: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
