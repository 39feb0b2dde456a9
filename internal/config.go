package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quill/internal/api"
	"github.com/starford/quill/internal/story"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Stories StoriesConfig     `yaml:"stories"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Editor  EditorConfig      `yaml:"editor"`
	Render  RenderConfig      `yaml:"render"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Stories.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Editor.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoriesConfig holds the path to the story directory.
type StoriesConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the stories configuration.
func (c *StoriesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//   - "jwt": HS256 Bearer JWTs carrying sub and role claims; JWTSecret must be non-empty.
type AuthConfig struct {
	Mode      string `yaml:"mode"`
	Token     string `yaml:"token"`
	JWTSecret string `yaml:"jwt_secret"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = api.AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(api.AuthModeDisabled, api.AuthModeToken, api.AuthModeJWT)),
	); err != nil {
		return err
	}
	if c.Mode == api.AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", api.AuthModeToken)
	}
	if c.Mode == api.AuthModeJWT && c.JWTSecret == "" {
		return fmt.Errorf("auth: mode is %q but jwt_secret is empty", api.AuthModeJWT)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == api.AuthModeToken || c.Mode == api.AuthModeJWT
}

// Settings converts the config into the API's auth settings.
func (c *AuthConfig) Settings() api.AuthSettings {
	return api.AuthSettings{Mode: c.Mode, Token: c.Token, JWTSecret: c.JWTSecret}
}

// EditorConfig holds editor session configuration.
type EditorConfig struct {
	DefaultCodeLanguage string        `yaml:"default_code_language"`
	SessionIdleTimeout  time.Duration `yaml:"session_idle_timeout"`
}

// Validate validates the editor configuration.
func (c *EditorConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SessionIdleTimeout, validation.Required, validation.Min(time.Minute)),
	)
}

// RenderConfig holds HTML rendering options.
type RenderConfig struct {
	TOC            bool `yaml:"toc"`
	InlineMarkdown bool `yaml:"inline_markdown"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Stories: StoriesConfig{
			Path: "./stories",
		},
		SQLite: SQLiteConfig{
			Path: "./quill.db",
		},
		Auth: AuthConfig{
			Mode: api.AuthModeDisabled,
		},
		Editor: EditorConfig{
			DefaultCodeLanguage: story.DefaultCodeLanguage,
			SessionIdleTimeout:  30 * time.Minute,
		},
		Render: RenderConfig{
			TOC: true,
		},
	}
}
