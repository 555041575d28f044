package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/sortie/internal/common"
	"github.com/Veraticus/sortie/internal/config"
	"github.com/Veraticus/sortie/internal/logstore"
	"github.com/Veraticus/sortie/internal/metadata"
	"github.com/Veraticus/sortie/internal/renamer"
	"github.com/Veraticus/sortie/internal/taxonomy"
	"github.com/spf13/viper"
)

func loadSettings() (config.Settings, error) {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Settings{}, common.NewUserError("Configuration is invalid", err)
	}
	return settings, nil
}

func loadClassifier(settings config.Settings) (*taxonomy.Classifier, error) {
	table, err := taxonomy.Load(settings.Paths.Rules)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("Could not load taxonomy rules from %s", settings.Paths.Rules), err)
	}
	return taxonomy.NewClassifier(table), nil
}

func loadRenamer(settings config.Settings, progress func(done, total int)) (*renamer.Renamer, error) {
	catalog, err := metadata.Load(settings.Paths.Catalog)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("Could not load metadata catalog from %s", settings.Paths.Catalog), err)
	}
	return renamer.New(catalog, renamer.Options{
		Progress:        progress,
		ClassifiedDir:   settings.Rename.ClassifiedDir,
		UnclassifiedDir: settings.Rename.UnclassifiedDir,
		Ignore:          settings.Rename.Ignore,
		Lowercase:       settings.Rename.Lowercase,
	})
}

// openStore opens the configured log backend.
func openStore(ctx context.Context, settings config.Settings) (logstore.Store, error) {
	if settings.LogBackend == config.BackendSQLite {
		store, err := logstore.NewSQLiteStore(ctx, settings.Paths.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open log database: %w", err)
		}
		return store, nil
	}
	return logstore.NewFileStore(settings.Paths.Log), nil
}
