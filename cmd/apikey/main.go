// Command apikey issues an API key for a user, creating the user when the
// email is not registered yet. The raw key is printed once and never stored.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	mw "github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/middleware"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/config"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/store"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "apikey: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("apikey", flag.ContinueOnError)
	email := fs.String("email", "", "email of the key owner (required)")
	name := fs.String("name", "", "display name, required when the user does not exist yet")
	scopes := fs.String("scopes", models.ScopeUser, "comma separated scopes: user, admin")
	keyName := fs.String("key-name", "cli", "label stored with the key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	scopeList, err := parseScopes(*scopes)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("-email is required")
	}

	config.LoadEnvFiles(".env")
	dbCfg, err := env.ParseAs[config.DatabaseConfig]()
	if err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if dbCfg.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, release, err := store.Open(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer release()

	user, raw, err := issueKey(ctx, st, *email, *name, *keyName, scopeList)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "user:   %d (%s)\n", user.ID, user.Email)
	fmt.Fprintf(out, "scopes: %s\n", strings.Join(scopeList, ","))
	fmt.Fprintf(out, "key:    %s\n", raw)
	fmt.Fprintln(out, "Store this key now; it cannot be shown again.")
	return nil
}

// issueKey finds or creates the user and stores a new key for them.
func issueKey(ctx context.Context, st store.Store, email, name, keyName string, scopes []string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := st.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, "", fmt.Errorf("user %s does not exist; -name is required to create it", email)
		}
		user = &models.User{Email: email, Name: name}
		if err := st.CreateUser(ctx, user); err != nil {
			return nil, "", fmt.Errorf("create user: %w", err)
		}
		slog.Info("user created", "user_id", user.ID)
	case err != nil:
		return nil, "", fmt.Errorf("look up user: %w", err)
	}

	raw, prefix, hash, err := mw.GenerateAPIKey()
	if err != nil {
		return nil, "", err
	}
	now := time.Now().UTC()
	key := &models.APIKey{
		ID:        uuid.New(),
		UserID:    user.ID,
		Name:      keyName,
		KeyHash:   hash,
		KeyPrefix: prefix,
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.CreateAPIKey(ctx, key); err != nil {
		return nil, "", fmt.Errorf("store api key: %w", err)
	}
	slog.Info("api key issued", "user_id", user.ID, "key_prefix", prefix, "scopes", scopes)
	return user, raw, nil
}

func parseScopes(raw string) ([]string, error) {
	var scopes []string
	seen := make(map[string]bool)
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		if s != models.ScopeUser && s != models.ScopeAdmin {
			return nil, fmt.Errorf("unknown scope %q", s)
		}
		seen[s] = true
		scopes = append(scopes, s)
	}
	if len(scopes) == 0 {
		return nil, errors.New("at least one scope is required")
	}
	return scopes, nil
}
