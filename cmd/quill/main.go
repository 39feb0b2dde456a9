package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/quill/internal"
	"github.com/starford/quill/internal/api"
	"github.com/starford/quill/internal/models"
	pkgconfig "github.com/starford/quill/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func issueToken(_ context.Context, cmd *cli.Command) error {
	secret := cmd.String("secret")
	if secret == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		secret = cfg.Auth.JWTSecret
	}
	if secret == "" {
		return fmt.Errorf("no signing secret: set --secret or auth.jwt_secret")
	}
	role := models.Role(cmd.String("role"))
	if !role.Valid() {
		return fmt.Errorf("unknown role %q (reader, writer, admin)", role)
	}
	tok, err := api.IssueToken(secret, models.Actor{Subject: cmd.String("sub"), Role: role}, cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, tok)
	return err
}

func main() {
	cmd := &cli.Command{
		Name:   "quill",
		Usage:  "Block-based story editor with file storage, full-text search and HTML rendering",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "encode",
				Usage:     "Encode a JSON block array into story text",
				ArgsUsage: "[file]",
				Action:    encodeAction,
			},
			{
				Name:      "decode",
				Usage:     "Decode story text into a JSON block array",
				ArgsUsage: "[file]",
				Action:    decodeAction,
			},
			{
				Name:      "render",
				Usage:     "Render story text to HTML",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "toc", Usage: "Expand [TOC] into a table of contents", Value: true},
					&cli.BoolFlag{Name: "inline", Usage: "Render inline markdown with goldmark"},
				},
				Action: renderAction,
			},
			{
				Name:  "token",
				Usage: "Issue a JWT for jwt auth mode",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sub", Usage: "Subject (author name)", Required: true},
					&cli.StringFlag{Name: "role", Usage: "reader, writer or admin", Value: string(models.RoleWriter)},
					&cli.DurationFlag{Name: "ttl", Usage: "Token lifetime", Value: 24 * time.Hour},
					&cli.StringFlag{Name: "secret", Usage: "Signing secret; defaults to auth.jwt_secret", Sources: cli.EnvVars("QUILL_JWT_SECRET")},
				},
				Action: issueToken,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
