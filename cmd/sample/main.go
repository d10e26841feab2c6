package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/lychee-technology/norma"
	"github.com/lychee-technology/norma/factory"
)

func main() {
	// Command line flags
	storageDir := flag.String("dir", "./settings-data", "Directory for the file storage adapter")
	adapter := flag.String("adapter", norma.AdapterFile, "Default storage adapter (memory or file)")
	seedFile := flag.String("seed", "", "Path to a JSON seed file of normalized representations")
	dumpSchema := flag.Bool("dump-schema", false, "Print the JSON Schema of every registered class")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	// Setup logging
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	if *verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Errorf("failed to build logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	ctx := context.Background()

	// Assemble the settings runtime
	config := norma.DefaultConfig()
	config.File.Directory = *storageDir
	config.Storage.Adapters = []string{norma.AdapterMemory, norma.AdapterFile}
	config.Storage.DefaultAdapter = *adapter
	config.Logging.LogOperations = *verbose

	sugar.Infof("Initializing settings runtime (adapter: %s, dir: %s)", *adapter, *storageDir)
	runtime, err := factory.New(ctx, config)
	if err != nil {
		sugar.Fatalf("Failed to build settings runtime: %v", err)
	}
	defer runtime.Close()
	manager := runtime.Manager

	if err := registerSampleClasses(manager); err != nil {
		sugar.Fatalf("Failed to register settings classes: %v", err)
	}
	sugar.Infof("Registered classes: %v", manager.Classes())

	// Optional schema dump
	if *dumpSchema {
		for _, class := range manager.Classes() {
			instance, err := manager.NewInstance(class)
			if err != nil {
				sugar.Fatalf("Failed to instantiate class '%s': %v", class, err)
			}
			doc, err := manager.ExportJSONSchema(instance)
			if err != nil {
				sugar.Fatalf("Failed to export JSON schema of '%s': %v", class, err)
			}
			sugar.Infof("JSON Schema for class '%s':", class)
			sugar.Info(string(doc))
		}
		os.Exit(0)
	}

	// Optional seed import
	if *seedFile != "" {
		sugar.Infof("Seeding settings from: %s", *seedFile)
		importer := NewSeedImporter(manager)
		result, err := importer.ImportFromFile(ctx, *seedFile)
		if err != nil {
			sugar.Fatalf("Seed import failed: %v", err)
		}
		if result.FailedCount > 0 {
			os.Exit(1)
		}
	}

	// Load the catalog settings: stored values when present, prototype
	// defaults otherwise.
	sugar.Infof("Hydrating catalog settings...")
	catalog := &catalogSettings{}
	if _, err := manager.Hydrate(ctx, catalog); err != nil {
		sugar.Fatalf("Failed to hydrate catalog settings: %v", err)
	}
	printSettings(sugar, "catalog settings (live)", manager, catalog)

	// Editing flow: work on a detached clone, fold it back, persist.
	sugar.Infof("Creating a working copy of the catalog settings...")
	cloned, err := manager.CreateClone(catalog)
	if err != nil {
		sugar.Fatalf("Failed to clone catalog settings: %v", err)
	}
	draft := cloned.(*catalogSettings)
	draft.Theme = "dark"
	draft.PageSize = 48
	if pricing := draft.Pricing.Get(); pricing != nil {
		pricing.DisplayTax = false
		pricing.SaleBadge = "DEAL"
	}

	sugar.Infof("Merging the working copy back...")
	if _, err := manager.MergeCopy(draft, catalog); err != nil {
		sugar.Fatalf("Failed to merge catalog settings: %v", err)
	}
	if _, err := manager.Persist(ctx, catalog); err != nil {
		sugar.Fatalf("Failed to persist catalog settings: %v", err)
	}
	printSettings(sugar, "catalog settings (merged)", manager, catalog)

	// The pricing class is a settings class of its own: it stores under its
	// own key and can be loaded without going through the catalog.
	pricing := &pricingSettings{}
	if _, err := manager.Hydrate(ctx, pricing); err != nil {
		sugar.Fatalf("Failed to hydrate pricing settings: %v", err)
	}
	printSettings(sugar, "pricing settings (standalone)", manager, pricing)

	// The export job settings: demonstrate reset-to-defaults.
	export := &exportSettings{}
	if _, err := manager.Hydrate(ctx, export); err != nil {
		sugar.Fatalf("Failed to hydrate export settings: %v", err)
	}
	export.Enabled = true
	export.MaxRows = 100_000
	if _, err := manager.Persist(ctx, export); err != nil {
		sugar.Fatalf("Failed to persist export settings: %v", err)
	}
	printSettings(sugar, "export settings (before reset)", manager, export)

	sugar.Infof("Resetting export settings to defaults...")
	if err := manager.Reset(export); err != nil {
		sugar.Fatalf("Failed to reset export settings: %v", err)
	}
	printSettings(sugar, "export settings (after reset)", manager, export)

	started := time.Now()
	if _, err := manager.Persist(ctx, export); err != nil {
		sugar.Fatalf("Failed to persist export settings: %v", err)
	}
	sugar.Infof("Final persist took %v", time.Since(started))
	sugar.Infof("Done. Stored documents live under: %s", *storageDir)
}

// printSettings renders the normalized representation of a settings instance
// as indented JSON.
func printSettings(sugar *zap.SugaredLogger, label string, manager norma.SettingsManager, settings any) {
	data, err := manager.ToNormalized(settings)
	if err != nil {
		sugar.Errorf("Failed to normalize %s: %v", label, err)
		return
	}
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		sugar.Errorf("Failed to marshal %s: %v", label, err)
		return
	}
	sugar.Infof("%s:", label)
	sugar.Info(string(jsonBytes))
}
