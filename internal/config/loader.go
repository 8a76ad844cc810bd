package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/DrTrintignant/Songbird/internal/mcp"
)

// Environment variables that override file settings.
const (
	EnvDiscordToken = "SONGBIRD_DISCORD_TOKEN"
	EnvLogLevel     = "SONGBIRD_LOG_LEVEL"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultLogLevel          = LogInfo
	DefaultName              = "Songbird"
	DefaultVersion           = "1.0.0"
	DefaultMCPTransport      = mcp.TransportStdio
	DefaultMCPPath           = "/mcp"
	DefaultSoundsDir         = "sounds"
	DefaultBindingsFile      = "bound_sounds.json"
	DefaultAPIKeyFile        = "api_key.txt"
	DefaultPageSize          = 15
	DefaultMaxPages          = 5
	DefaultMaxResults        = 75
	DefaultTimeout           = 10 * time.Second
	DefaultDownloadTimeout   = 30 * time.Second
	DefaultRequestsPerMinute = 60
	DefaultMaxFailures       = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenMax       = 1
	DefaultBackend           = BackendAuto
	DefaultUnmuteVolume      = 0.7
	DefaultVolumeStep        = 0.1
)

// KnownCommands lists the external players the command backend understands.
var KnownCommands = []string{"ffplay", "mpv", "paplay", "afplay"}

// LoadDotEnv loads KEY=value pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(files ...string) error {
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("config: load env files: %w", err)
	}
	slog.Debug("config: loaded env files", "files", existing)
	return nil
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. An empty path yields the defaults. Relative paths inside the file
// are resolved against the file's directory when paths.data_dir is unset.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := &Config{}
		ApplyDefaults(cfg)
		applyEnv(cfg)
		if err := resolvePaths(cfg, "."); err != nil {
			return nil, err
		}
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	return parseFile(data, path)
}

// parseFile decodes, resolves and validates the content of the file at path.
func parseFile(data []byte, path string) (*Config, error) {
	cfg, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	if err := resolvePaths(cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Paths are left as written. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// ApplyDefaults fills every zero-valued field of cfg.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}
	if s.Name == "" {
		s.Name = DefaultName
	}
	if s.Version == "" {
		s.Version = DefaultVersion
	}

	if cfg.MCP.Transport == "" {
		cfg.MCP.Transport = DefaultMCPTransport
	}
	if cfg.MCP.Path == "" {
		cfg.MCP.Path = DefaultMCPPath
	}

	p := &cfg.Paths
	if p.SoundsDir == "" {
		p.SoundsDir = DefaultSoundsDir
	}
	if p.BindingsFile == "" {
		p.BindingsFile = DefaultBindingsFile
	}
	if p.APIKeyFile == "" {
		p.APIKeyFile = DefaultAPIKeyFile
	}

	fs := &cfg.Freesound
	if fs.PageSize == 0 {
		fs.PageSize = DefaultPageSize
	}
	if fs.MaxPages == 0 {
		fs.MaxPages = DefaultMaxPages
	}
	if fs.MaxResults == 0 {
		fs.MaxResults = DefaultMaxResults
	}
	if fs.Timeout == 0 {
		fs.Timeout = Duration(DefaultTimeout)
	}
	if fs.DownloadTimeout == 0 {
		fs.DownloadTimeout = Duration(DefaultDownloadTimeout)
	}
	if fs.RequestsPerMinute == 0 {
		fs.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if fs.Breaker.MaxFailures == 0 {
		fs.Breaker.MaxFailures = DefaultMaxFailures
	}
	if fs.Breaker.ResetTimeout == 0 {
		fs.Breaker.ResetTimeout = Duration(DefaultResetTimeout)
	}
	if fs.Breaker.HalfOpenMax == 0 {
		fs.Breaker.HalfOpenMax = DefaultHalfOpenMax
	}

	a := &cfg.Audio
	if a.Backend == "" {
		a.Backend = DefaultBackend
	}
	if a.UnmuteVolume == 0 {
		a.UnmuteVolume = DefaultUnmuteVolume
	}
	if a.VolumeStep == 0 {
		a.VolumeStep = DefaultVolumeStep
	}
}

// applyEnv overlays environment variables on cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDiscordToken); v != "" && cfg.Discord.Token == "" {
		cfg.Discord.Token = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Server.LogLevel = LogLevel(v)
	}
}

// resolvePaths makes the paths section absolute. base is used when
// paths.data_dir is empty or relative.
func resolvePaths(cfg *Config, base string) error {
	p := &cfg.Paths
	dir := p.DataDir
	if dir == "" {
		dir = base
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("config: resolve data_dir %q: %w", dir, err)
	}
	p.DataDir = abs
	for _, f := range []*string{&p.SoundsDir, &p.BindingsFile, &p.APIKeyFile, &cfg.Server.LogFile} {
		if *f != "" && !filepath.IsAbs(*f) {
			*f = filepath.Join(abs, *f)
		}
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// MCP
	switch {
	case !cfg.MCP.Transport.IsValid():
		errs = append(errs, fmt.Errorf("mcp.transport %q is invalid; valid values: stdio, streamable-http, none", cfg.MCP.Transport))
	case cfg.MCP.Transport == mcp.TransportStreamableHTTP && cfg.Server.ListenAddr == "":
		errs = append(errs, errors.New("mcp.transport streamable-http requires server.listen_addr"))
	case cfg.MCP.Transport == mcp.TransportStdio && cfg.Server.LogFile == "":
		slog.Warn("mcp.transport is stdio but server.log_file is unset; logs go to stderr")
	}
	if !strings.HasPrefix(cfg.MCP.Path, "/") {
		errs = append(errs, fmt.Errorf("mcp.path %q must start with /", cfg.MCP.Path))
	}

	// Freesound
	fs := cfg.Freesound
	if fs.PageSize < 1 || fs.PageSize > 150 {
		errs = append(errs, fmt.Errorf("freesound.page_size %d is out of range [1, 150]", fs.PageSize))
	}
	if fs.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("freesound.max_pages %d must be at least 1", fs.MaxPages))
	}
	if fs.MaxResults < 1 {
		errs = append(errs, fmt.Errorf("freesound.max_results %d must be at least 1", fs.MaxResults))
	}
	if fs.Timeout < 0 || fs.DownloadTimeout < 0 {
		errs = append(errs, errors.New("freesound timeouts must not be negative"))
	}
	if fs.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("freesound.requests_per_minute %d must not be negative", fs.RequestsPerMinute))
	}
	if fs.MaxResults < fs.PageSize {
		slog.Warn("freesound.max_results is smaller than one page; later pages will never be requested",
			"max_results", fs.MaxResults,
			"page_size", fs.PageSize,
		)
	}

	// Audio
	a := cfg.Audio
	if !a.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("audio.backend %q is invalid; valid values: speaker, command, auto", a.Backend))
	}
	if a.UnmuteVolume < 0 || a.UnmuteVolume > 1 {
		errs = append(errs, fmt.Errorf("audio.unmute_volume %.2f is out of range [0, 1]", a.UnmuteVolume))
	}
	if a.VolumeStep <= 0 || a.VolumeStep > 1 {
		errs = append(errs, fmt.Errorf("audio.volume_step %.2f is out of range (0, 1]", a.VolumeStep))
	}
	if a.Command != "" && !slices.Contains(KnownCommands, a.Command) {
		errs = append(errs, fmt.Errorf("audio.command %q is not supported; valid values: %v", a.Command, KnownCommands))
	}

	// Discord
	if cfg.Discord.Token != "" && cfg.Discord.GuildID == "" {
		errs = append(errs, errors.New("discord.guild_id is required when a bot token is configured"))
	}
	if cfg.Discord.Token == "" && cfg.Discord.GuildID != "" {
		slog.Warn("discord.guild_id is set but no bot token is configured; the Discord front end is disabled")
	}

	return errors.Join(errs...)
}
