package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.BindEnv("slopify.home", "SLOPIFY_HOME")
	v.BindEnv("ffmpeg.path", "SLOPIFY_FFMPEG")
	v.BindEnv("ffprobe.path", "SLOPIFY_FFPROBE")
	v.BindEnv("render.frame_rate", "SLOPIFY_FRAME_RATE")
	v.BindEnv("render.output_dir", "SLOPIFY_OUTPUT_DIR")
	v.BindEnv("render.background", "SLOPIFY_BACKGROUND")
	v.BindEnv("transcode.max_width", "SLOPIFY_TRANSCODE_MAX_WIDTH")
	v.BindEnv("transcode.max_height", "SLOPIFY_TRANSCODE_MAX_HEIGHT")
	v.BindEnv("project.path", "SLOPIFY_PROJECT_PATH")
	v.BindEnv("project.user", "SLOPIFY_USER")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Look for config in the following paths
	configPaths := []string{
		".",
		"$HOME/.slopify",
		"/etc/slopify",
	}

	for _, path := range configPaths {
		v.AddConfigPath(os.ExpandEnv(path))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("slopify.home", filepath.Join(xdg.Home, ".slopify"))

	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("ffprobe.path", "ffprobe")

	v.SetDefault("render.frame_rate", 30)
	v.SetDefault("render.output_dir", ".")
	v.SetDefault("render.background", "#000000")

	v.SetDefault("transcode.max_width", 1920)
	v.SetDefault("transcode.max_height", 1080)

	// Resolved against slopify.home when empty
	v.SetDefault("project.path", "")
	v.SetDefault("project.user", "")
}

// GetSlopifyHome returns the slopify home directory
func GetSlopifyHome() string {
	return v.GetString("slopify.home")
}

// GetFFmpegPath returns the ffmpeg binary used for decoding, encoding and transcoding
func GetFFmpegPath() string {
	return v.GetString("ffmpeg.path")
}

// GetFFprobePath returns the ffprobe binary used for metadata extraction
func GetFFprobePath() string {
	return v.GetString("ffprobe.path")
}

// GetFrameRate returns the default render frame rate
func GetFrameRate() int {
	return v.GetInt("render.frame_rate")
}

// GetOutputDir returns the directory rendered videos are saved into
func GetOutputDir() string {
	return v.GetString("render.output_dir")
}

// GetBackground returns the canvas clear color as a hex string
func GetBackground() string {
	return v.GetString("render.background")
}

// GetTranscodeMaxWidth returns the transcoder's maximum output width
func GetTranscodeMaxWidth() int {
	return v.GetInt("transcode.max_width")
}

// GetTranscodeMaxHeight returns the transcoder's maximum output height
func GetTranscodeMaxHeight() int {
	return v.GetInt("transcode.max_height")
}

// GetProjectPath returns the project store file path
func GetProjectPath() string {
	if p := v.GetString("project.path"); p != "" {
		return p
	}
	return filepath.Join(GetSlopifyHome(), "projects.toml")
}

// GetProjectUser returns the user id projects are stored under
func GetProjectUser() string {
	if u := v.GetString("project.user"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
