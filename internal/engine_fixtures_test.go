package internal

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lychee-technology/norma"
)

// Shared fixtures for the marshalling, clone, merge and reset engine tests.

type notifierSettings struct {
	Webhook string `setting:"webhook"`
	Retries int    `setting:"retries"`
}

type profileSettings struct {
	Theme    string   `setting:"theme"`
	PageSize int      `setting:"page_size"`
	Labels   []string `setting:"labels"`

	Notifier norma.Embedded[notifierSettings] `embedded:""`
}

// workspaceSettings embeds profileSettings twice so the class-keyed clone
// and merge memos are observable.
type workspaceSettings struct {
	Title string `setting:"title"`

	Primary  norma.Embedded[profileSettings] `embedded:""`
	Fallback norma.Embedded[profileSettings] `embedded:""`
}

func defaultNotifier() *notifierSettings {
	return &notifierSettings{Webhook: "https://hooks.example.com", Retries: 3}
}

func defaultProfile() *profileSettings {
	return &profileSettings{Theme: "light", PageSize: 25, Labels: []string{"default"}}
}

func defaultWorkspace() *workspaceSettings {
	return &workspaceSettings{Title: "workspace"}
}

// engineRig wires the engines over one class registry and an in-memory
// store, the way the manager does in production.
type engineRig struct {
	registry   *ClassRegistry
	schemas    *schemaCache
	converters norma.ConverterRegistry
	adapters   norma.AdapterRegistry
	migrators  norma.MigratorRegistry
	store      *MemoryStorage
	marshaller *Marshaller
	cloner     *Cloner
	merger     *Merger
	resetter   *Resetter
}

func newEngineRig(t *testing.T) *engineRig {
	t.Helper()
	registry := NewClassRegistry()
	builder := NewSchemaBuilder(registry, nil, norma.AdapterMemory)
	schemas, err := newSchemaCache(builder, 64, false)
	require.NoError(t, err)

	store := NewMemoryStorage()
	adapters := NewAdapterRegistry()
	require.NoError(t, adapters.Register(norma.AdapterMemory, store))
	converters := NewConverterRegistry()
	migrators := NewMigratorRegistry()

	return &engineRig{
		registry:   registry,
		schemas:    schemas,
		converters: converters,
		adapters:   adapters,
		migrators:  migrators,
		store:      store,
		marshaller: NewMarshaller(registry, schemas, converters, adapters, migrators),
		cloner:     NewCloner(registry, schemas),
		merger:     NewMerger(registry, schemas),
		resetter:   NewResetter(registry, schemas),
	}
}

// register declares a class and returns its built schema.
func (r *engineRig) register(t *testing.T, prototype any, decl norma.ClassDeclaration) *norma.SchemaModel {
	t.Helper()
	require.NoError(t, r.registry.Register(prototype, decl))
	class, err := r.registry.Resolve(prototype)
	require.NoError(t, err)
	schema, err := r.schemas.Get(class)
	require.NoError(t, err)
	return schema
}

// registerProfileGraph declares notifier + profile and returns the profile
// schema.
func (r *engineRig) registerProfileGraph(t *testing.T) *norma.SchemaModel {
	t.Helper()
	r.register(t, defaultNotifier(), norma.ClassDeclaration{})
	return r.register(t, defaultProfile(), norma.ClassDeclaration{})
}

// registerWorkspaceGraph declares the full three-class graph and returns the
// workspace schema.
func (r *engineRig) registerWorkspaceGraph(t *testing.T) *norma.SchemaModel {
	t.Helper()
	r.registerProfileGraph(t)
	return r.register(t, defaultWorkspace(), norma.ClassDeclaration{})
}
