package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	"github.com/lychee-technology/norma"
)

// SeedError represents an error that occurred while seeding a single class.
type SeedError struct {
	Class  string // Settings class identifier
	Reason string // Error description
}

func (e *SeedError) Error() string {
	return fmt.Sprintf("class %q: %s", e.Class, e.Reason)
}

// SeedResult contains the results of a seed import operation.
type SeedResult struct {
	TotalDocs    int           // Number of class documents in the seed file
	SuccessCount int           // Number of successfully persisted classes
	FailedCount  int           // Number of failed classes
	Errors       []*SeedError  // Detailed error information for failed classes
	Duration     time.Duration // Total import duration
}

// Summary returns a human-readable summary of the seed result.
func (r *SeedResult) Summary() string {
	return fmt.Sprintf("Seed completed: %d/%d classes successful, %d failed, duration: %v",
		r.SuccessCount, r.TotalDocs, r.FailedCount, r.Duration)
}

// SeedImporter loads a seed file of normalized representations and persists
// each class through the settings manager. The seed file is a JSON object
// mapping class identifiers to their normalized representations:
//
//	{
//	  "catalog_settings": {"theme": "dark", "page_size": 48},
//	  "pricing_settings": {"display_tax": false}
//	}
type SeedImporter struct {
	manager norma.SettingsManager
	logger  *log.Logger
}

// NewSeedImporter creates a new SeedImporter.
func NewSeedImporter(manager norma.SettingsManager) *SeedImporter {
	return &SeedImporter{
		manager: manager,
		logger:  log.New(os.Stderr, "[SeedImporter] ", log.LstdFlags),
	}
}

// SetLogger sets a custom logger for the importer.
func (i *SeedImporter) SetLogger(logger *log.Logger) {
	i.logger = logger
}

// ImportFromFile imports seed data from a file.
func (i *SeedImporter) ImportFromFile(ctx context.Context, filePath string) (*SeedResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer file.Close()

	return i.ImportFromReader(ctx, file)
}

// ImportFromReader imports seed data from an io.Reader. Classes are processed
// in lexical order so failures are reported deterministically; one failing
// class does not abort the rest.
func (i *SeedImporter) ImportFromReader(ctx context.Context, reader io.Reader) (*SeedResult, error) {
	startTime := time.Now()

	var docs map[string]norma.NormalizedRepresentation
	if err := json.NewDecoder(reader).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}

	result := &SeedResult{
		TotalDocs: len(docs),
		Errors:    make([]*SeedError, 0),
	}

	classes := make([]string, 0, len(docs))
	for class := range docs {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	for _, class := range classes {
		if err := i.seedClass(ctx, class, docs[class]); err != nil {
			seedErr := &SeedError{Class: class, Reason: err.Error()}
			i.logger.Printf("[ERROR] %s", seedErr.Error())
			result.Errors = append(result.Errors, seedErr)
			result.FailedCount++
			continue
		}
		result.SuccessCount++
	}

	result.Duration = time.Since(startTime)
	i.logger.Printf("%s", result.Summary())

	return result, nil
}

// seedClass validates one representation, folds it into a stored-or-default
// instance and persists the result. Seeding on top of the hydrated instance
// keeps parameters the seed file does not mention.
func (i *SeedImporter) seedClass(ctx context.Context, class string, data norma.NormalizedRepresentation) error {
	instance, err := i.manager.NewInstance(class)
	if err != nil {
		return err
	}
	if err := i.manager.ValidateNormalized(instance, data); err != nil {
		return err
	}
	if _, err := i.manager.Hydrate(ctx, instance); err != nil {
		return err
	}
	if _, err := i.manager.ApplyNormalized(data, instance); err != nil {
		return err
	}
	if _, err := i.manager.Persist(ctx, instance); err != nil {
		return err
	}
	return nil
}
