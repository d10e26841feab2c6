package main

import (
	"time"

	"github.com/lychee-technology/norma"
)

// catalogSettings controls how the storefront renders the product catalog.
// Pricing display is split into its own embedded class so back-office tooling
// can edit it independently.
type catalogSettings struct {
	Theme          string        `setting:"theme,group=display"`
	PageSize       int           `setting:"page_size,group=display"`
	Currency       string        `setting:"currency,group=pricing"`
	ShowOutOfStock bool          `setting:"show_out_of_stock,group=display"`
	CacheTTL       time.Duration `setting:"cache_ttl"`

	Pricing norma.Embedded[pricingSettings] `embedded:"group=pricing"`
}

// pricingSettings configures price presentation.
type pricingSettings struct {
	DisplayTax bool    `setting:"display_tax"`
	RoundTo    float64 `setting:"round_to"`
	SaleBadge  string  `setting:"sale_badge"`
	lastEditor string
}

// ResetToDefaults restores the factory pricing configuration, including the
// undeclared editor field the schema never sees.
func (p *pricingSettings) ResetToDefaults() {
	p.DisplayTax = true
	p.RoundTo = 0.05
	p.SaleBadge = "SALE"
	p.lastEditor = ""
}

// exportSettings configures the nightly catalog export job.
type exportSettings struct {
	Enabled     bool     `setting:"enabled"`
	Destination string   `setting:"destination"`
	Formats     []string `setting:"formats"`
	MaxRows     int      `setting:"max_rows,nullable"`
}

// AfterClone stamps the clone so audit output can tell working copies apart
// from the live instance.
func (e *exportSettings) AfterClone(original any) {
	if src, ok := original.(*exportSettings); ok && src.Destination != "" {
		e.Destination = src.Destination
	}
}

// registerSampleClasses registers the demo settings classes with their
// prototype defaults. The embedded pricing class must be known before the
// catalog schema is first built.
func registerSampleClasses(manager norma.SettingsManager) error {
	if err := manager.RegisterClass(&pricingSettings{
		DisplayTax: true,
		RoundTo:    0.05,
		SaleBadge:  "SALE",
	}, norma.ClassDeclaration{}); err != nil {
		return err
	}

	if err := manager.RegisterClass(&catalogSettings{
		Theme:          "light",
		PageSize:       24,
		Currency:       "EUR",
		ShowOutOfStock: true,
		CacheTTL:       5 * time.Minute,
	}, norma.ClassDeclaration{}); err != nil {
		return err
	}

	return manager.RegisterClass(&exportSettings{
		Destination: "s3://catalog-exports",
		Formats:     []string{"csv", "parquet"},
	}, norma.ClassDeclaration{
		Name:       "export_settings",
		StorageKey: "jobs/export",
	})
}
