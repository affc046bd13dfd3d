// Command bootstrap-admin creates an administrator account, or promotes an
// existing one, so the campaign board can be managed.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/petlink/petlink/internal/auth"
	"github.com/petlink/petlink/internal/cache"
	"github.com/petlink/petlink/internal/model"
	"github.com/petlink/petlink/internal/repository"
	"github.com/petlink/petlink/internal/service"
)

type output struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Created   bool   `json:"created"`
}

type options struct {
	databaseURL string
	redisURL    string
	email       string
	name        string
	phone       string
	password    string
	format      string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.StringVar(&opts.redisURL, "redis-url", os.Getenv("REDIS_URL"), "Redis URL; when set, the cached role is evicted")
	flag.StringVar(&opts.email, "email", "", "Administrator email")
	flag.StringVar(&opts.name, "name", "Administrador", "Name used when the account is created")
	flag.StringVar(&opts.phone, "phone", "", "Phone used when the account is created")
	flag.StringVar(&opts.password, "password", os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"), "Password used when the account is created")
	flag.StringVar(&opts.format, "format", "plain", "Output format: plain or json")
	flag.Parse()

	if err := validateOptions(opts); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := bootstrap(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if err := writeOutput(os.Stdout, opts.format, out); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func validateOptions(opts options) error {
	if opts.databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if strings.TrimSpace(opts.email) == "" {
		return errors.New("-email is required")
	}
	switch strings.ToLower(opts.format) {
	case "plain", "json":
	default:
		return errors.New("invalid format; use plain or json")
	}
	return nil
}

func bootstrap(ctx context.Context, opts options) (*output, error) {
	if _, err := repository.Migrate(opts.databaseURL); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	repo, err := repository.New(ctx, opts.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	defer repo.Close()

	deps := service.AccountServiceDeps{
		Accounts: repo,
		Hasher:   auth.NewHasher(auth.DefaultParams),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if opts.redisURL != "" {
		c, err := cache.New(ctx, opts.redisURL)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		defer c.Close()
		deps.Roles = c
	}
	accounts := service.NewAccountService(deps)

	email := strings.ToLower(strings.TrimSpace(opts.email))
	created := false

	account, err := repo.GetAccountByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrAccountNotFound):
		if opts.password == "" {
			return nil, errors.New("account does not exist; -password or BOOTSTRAP_ADMIN_PASSWORD is required to create it")
		}
		account, err = accounts.Register(ctx, service.RegisterInput{
			Name:     opts.name,
			Email:    email,
			Phone:    opts.phone,
			Password: opts.password,
		})
		if err != nil {
			return nil, fmt.Errorf("create account: %w", err)
		}
		created = true
	case err != nil:
		return nil, fmt.Errorf("get account: %w", err)
	}

	if err := accounts.SetRole(ctx, account.ID, model.RoleAdmin); err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}

	return &output{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      string(model.RoleAdmin),
		Created:   created,
	}, nil
}

func writeOutput(w io.Writer, format string, out *output) error {
	if strings.ToLower(format) == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	_, err := fmt.Fprintln(w, out.AccountID)
	return err
}
