// Command token mints a bearer token for callers of the task and llm routes.
// The signing secret is read from AUTH_JWT_SECRET.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	config "github.com/xilidan/signposting/config/ai"
	"github.com/xilidan/signposting/pkg/jwt"
	"github.com/xilidan/signposting/pkg/logger"
)

var errMissingSecret = errors.New("AUTH_JWT_SECRET is not set")

func main() {
	subject := flag.String("subject", "cloud-tasks", "subject claim of the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	log := logger.Default()
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env", slog.String("error", err.Error()))
	}

	var auth config.AuthConfig
	if err := cleanenv.ReadEnv(&auth); err != nil {
		log.Error("failed to read auth config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := logger.WithContext(context.Background(), log)
	if err := mint(ctx, os.Stdout, &auth, *subject, *ttl); err != nil {
		log.Error("failed to mint token", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func mint(ctx context.Context, w io.Writer, auth *config.AuthConfig, subject string, ttl time.Duration) error {
	if auth.JWTSecret == "" {
		return errMissingSecret
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	token, err := jwt.Generate(ctx, subject, auth.JWTSecret, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
