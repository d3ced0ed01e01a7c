package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmtech/fieldsync/internal/api"
	"github.com/pmtech/fieldsync/internal/config"
	"github.com/pmtech/fieldsync/internal/engine"
	"github.com/pmtech/fieldsync/internal/store"
)

var outputJSON bool

func addOutputFlags(cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.Flags().BoolVar(&outputJSON, "output-json", false, "Output as JSON")
	}
}

// app bundles the wired-up engine and its collaborators for one CLI
// invocation.
type app struct {
	cfg      *config.Config
	store    *store.Store
	resolver *api.Resolver
	tokens   *api.FileTokenStore
	client   *api.Client
	engine   *engine.Engine
}

func buildApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel == "" && cfg.Log.Level != "" {
		logLevel = cfg.Log.Level
		setupLogging()
	}

	st, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	resolver := api.NewResolver(api.ResolverConfig{
		DiscoveryURL:    cfg.Server.DiscoveryURL,
		FallbackURL:     cfg.Server.FallbackURL,
		RefreshInterval: time.Duration(cfg.Server.DiscoveryRefreshSeconds) * time.Second,
	})

	tokenPath := cfg.Auth.TokenPath
	if tokenPath == "" {
		tokenPath = filepath.Join(cfg.Storage.DataDir, "tokens.json")
	}
	tokens, err := api.NewFileTokenStore(tokenPath, cfg.Server.FallbackURL+cfg.Auth.RefreshPath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open token store: %w", err)
	}

	client := api.New(resolver)
	client.Tokens = tokens
	client.OnAuthInvalid = func() {
		slog.Warn("session expired, sign in again")
	}

	return &app{
		cfg:      cfg,
		store:    st,
		resolver: resolver,
		tokens:   tokens,
		client:   client,
		engine:   engine.New(st, client),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("close store", "err", err)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
