package config

const (
	defaultWorkspaceDir       = "~/.local/share/upscaler/workspace"
	defaultLogDir             = "~/.local/share/upscaler/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultMaxFramesAhead     = 10
	defaultDeleteAttempts     = 20
	defaultDeleteBackoffMS    = 100
	defaultMaxInflightDeletes = 8
	defaultPartitions         = 3
	defaultJPEGQuality        = 98
	defaultEngineName         = "realesrgan-ncnn-vulkan"
	defaultEngineCommand      = "realesrgan-ncnn-vulkan"
	defaultEngineScale        = 2
	defaultEngineNoiseLevel   = 1
	defaultEngineBlockSize    = 20
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
)

var defaultEngineArgs = []string{"-i", "{input}", "-o", "{output}", "-s", "{scale}"}

var defaultOutputOptions = []string{"-c:v", "libx264", "-preset", "medium", "-crf", "18", "-pix_fmt", "yuv420p"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			LogDir:       defaultLogDir,
		},
		Pipeline: Pipeline{
			MaxFramesAhead:     defaultMaxFramesAhead,
			DeleteAttempts:     defaultDeleteAttempts,
			DeleteBackoffMS:    defaultDeleteBackoffMS,
			MaxInflightDeletes: defaultMaxInflightDeletes,
			Partitions:         defaultPartitions,
			JPEGQuality:        defaultJPEGQuality,
		},
		Engine: Engine{
			Name:       defaultEngineName,
			Command:    defaultEngineCommand,
			Args:       append([]string(nil), defaultEngineArgs...),
			Scale:      defaultEngineScale,
			NoiseLevel: defaultEngineNoiseLevel,
			BlockSize:  defaultEngineBlockSize,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			OutputOptions: append([]string(nil), defaultOutputOptions...),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
