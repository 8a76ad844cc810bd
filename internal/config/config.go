// Package config provides the configuration schema, loader and file watcher
// for the Songbird engine.
package config

import (
	"time"

	"github.com/DrTrintignant/Songbird/internal/mcp"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// AudioBackend selects the playback implementation.
type AudioBackend string

const (
	// BackendSpeaker decodes in-process and plays through the default
	// output device.
	BackendSpeaker AudioBackend = "speaker"

	// BackendCommand hands files to an external player process.
	BackendCommand AudioBackend = "command"

	// BackendAuto tries the speaker first and falls back to a command.
	BackendAuto AudioBackend = "auto"
)

// IsValid reports whether b is a recognised backend.
func (b AudioBackend) IsValid() bool {
	switch b {
	case BackendSpeaker, BackendCommand, BackendAuto:
		return true
	}
	return false
}

// Duration is a time.Duration that decodes from YAML strings such as "10s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
// Every field has a default applied by [ApplyDefaults].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	MCP       MCPConfig       `yaml:"mcp"`
	Paths     PathsConfig     `yaml:"paths"`
	Freesound FreesoundConfig `yaml:"freesound"`
	Audio     AudioConfig     `yaml:"audio"`
	Discord   DiscordConfig   `yaml:"discord"`
}

// ServerConfig holds logging and HTTP listener settings.
type ServerConfig struct {
	// ListenAddr is the address of the health and metrics listener
	// (e.g., ":9090"). Empty disables the listener.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile, when set, sends logs to a rotating file instead of stderr.
	// Required when serving MCP over stdio.
	LogFile string `yaml:"log_file"`

	// Name and Version are reported by the test operation.
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// MCPConfig selects how MCP hosts reach the server.
type MCPConfig struct {
	// Transport is "stdio" (default), "streamable-http" or "none".
	Transport mcp.Transport `yaml:"transport"`

	// Path is the HTTP path of the streamable-http endpoint. Ignored for
	// other transports.
	Path string `yaml:"path"`
}

// PathsConfig locates the files Songbird reads and writes. Relative paths
// are resolved against DataDir.
type PathsConfig struct {
	// DataDir is the base directory. Defaults to the working directory.
	DataDir string `yaml:"data_dir"`

	// SoundsDir is the local sound cache.
	SoundsDir string `yaml:"sounds_dir"`

	// BindingsFile is the JSON binding store.
	BindingsFile string `yaml:"bindings_file"`

	// APIKeyFile holds the Freesound API key.
	APIKeyFile string `yaml:"api_key_file"`
}

// FreesoundConfig tunes the remote provider.
type FreesoundConfig struct {
	// BaseURL overrides the Freesound API root. Leave empty for the default.
	BaseURL string `yaml:"base_url"`

	PageSize   int `yaml:"page_size"`
	MaxPages   int `yaml:"max_pages"`
	MaxResults int `yaml:"max_results"`

	// Timeout bounds one search request.
	Timeout Duration `yaml:"timeout"`

	// DownloadTimeout bounds one preview download.
	DownloadTimeout Duration `yaml:"download_timeout"`

	// RequestsPerMinute caps outbound requests.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the provider circuit breaker.
type BreakerConfig struct {
	MaxFailures  int      `yaml:"max_failures"`
	ResetTimeout Duration `yaml:"reset_timeout"`
	HalfOpenMax  int      `yaml:"half_open_max"`
}

// AudioConfig selects and tunes playback.
type AudioConfig struct {
	Backend AudioBackend `yaml:"backend"`

	// Command names the external player for the command backend. Empty
	// detects the first available one.
	Command string `yaml:"command"`

	// UnmuteVolume is the level restored by "unmute", in [0, 1].
	UnmuteVolume float64 `yaml:"unmute_volume"`

	// VolumeStep is the change applied by "volume up" and "volume down".
	VolumeStep float64 `yaml:"volume_step"`
}

// DiscordConfig enables the optional Discord front end.
type DiscordConfig struct {
	// Token is the bot token. Empty disables the bot. May also come from
	// SONGBIRD_DISCORD_TOKEN.
	Token string `yaml:"token"`

	// GuildID is the guild the slash commands are registered in.
	GuildID string `yaml:"guild_id"`

	// ControllerRoleID restricts commands to members with this role. Empty
	// allows everyone.
	ControllerRoleID string `yaml:"controller_role_id"`
}
