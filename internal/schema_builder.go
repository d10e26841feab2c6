package internal

import (
	"fmt"
	"strings"

	"dario.cat/mergo"
	"go.uber.org/zap"

	"github.com/lychee-technology/norma"
)

// SchemaBuilder derives the immutable SchemaModel of a registered class.
// Metadata is resolved per property with descending priority: explicit
// ClassDeclaration entry, struct tag, type guesser. Fields without a
// `setting`/`embedded` tag and without an explicit entry do not become part
// of the schema.
type SchemaBuilder struct {
	registry       *ClassRegistry
	guesser        norma.TypeGuesser
	defaultAdapter string
}

// NewSchemaBuilder creates a builder over the given class registry. A nil
// guesser falls back to the reflect-based default.
func NewSchemaBuilder(registry *ClassRegistry, guesser norma.TypeGuesser, defaultAdapter string) *SchemaBuilder {
	if guesser == nil {
		guesser = NewReflectTypeGuesser()
	}
	return &SchemaBuilder{
		registry:       registry,
		guesser:        guesser,
		defaultAdapter: defaultAdapter,
	}
}

// BuildSchema assembles the schema of one registered class. Pure with respect
// to the registry contents, so concurrent duplicate builds are harmless.
func (b *SchemaBuilder) BuildSchema(class string) (*norma.SchemaModel, error) {
	entry, err := b.registry.Entry(class)
	if err != nil {
		return nil, err
	}
	decl := entry.declaration

	explicitParams := make(map[string]norma.ParameterDeclaration, len(decl.Parameters))
	for _, p := range decl.Parameters {
		if p.Property == "" {
			return nil, norma.NewSchemaConflictError(class, "parameter declaration without a property")
		}
		if _, dup := explicitParams[p.Property]; dup {
			return nil, norma.NewSchemaConflictError(class,
				fmt.Sprintf("property '%s' declared twice", p.Property)).WithParameter(p.Property)
		}
		explicitParams[p.Property] = p
	}

	explicitEmbeds := make(map[string]norma.EmbeddedDeclaration, len(decl.Embedded))
	for _, e := range decl.Embedded {
		if e.Property == "" {
			return nil, norma.NewSchemaConflictError(class, "embedded declaration without a property")
		}
		if _, dup := explicitEmbeds[e.Property]; dup {
			return nil, norma.NewSchemaConflictError(class,
				fmt.Sprintf("embedded property '%s' declared twice", e.Property)).WithParameter(e.Property)
		}
		explicitEmbeds[e.Property] = e
	}

	var (
		params   []norma.ParameterDescriptor
		embeds   []norma.EmbeddedDescriptor
		consumed = make(map[string]bool)
	)

	goType := entry.goType
	for i := 0; i < goType.NumField(); i++ {
		field := goType.Field(i)
		if !field.IsExported() {
			continue
		}

		settingTag, hasSettingTag := field.Tag.Lookup("setting")
		embeddedTag, hasEmbeddedTag := field.Tag.Lookup("embedded")
		if hasSettingTag && hasEmbeddedTag {
			return nil, norma.NewSchemaConflictError(class,
				fmt.Sprintf("field '%s' carries both a setting and an embedded tag", field.Name)).WithParameter(field.Name)
		}

		if isSlotType(field.Type) {
			if hasSettingTag {
				return nil, norma.NewSchemaConflictError(class,
					fmt.Sprintf("embedded slot field '%s' cannot be declared as a parameter", field.Name)).WithParameter(field.Name)
			}
			explicit, hasExplicit := explicitEmbeds[field.Name]
			if !hasEmbeddedTag && !hasExplicit {
				continue
			}
			if embeddedTag == "-" {
				if hasExplicit {
					return nil, norma.NewSchemaConflictError(class,
						fmt.Sprintf("field '%s' is tagged excluded but declared explicitly", field.Name)).WithParameter(field.Name)
				}
				continue
			}
			consumed[field.Name] = true

			ed, err := parseEmbeddedTag(class, field.Name, embeddedTag)
			if err != nil {
				return nil, err
			}
			if hasExplicit {
				if err := mergo.Merge(&ed, explicit, mergo.WithOverride); err != nil {
					return nil, fmt.Errorf("failed to merge embedded declaration for '%s': %w", field.Name, err)
				}
			}
			if ed.Class == "" {
				elemType, ok := slotElemType(field.Type)
				if !ok {
					return nil, norma.NewSchemaConflictError(class,
						fmt.Sprintf("cannot determine embedded class of field '%s'", field.Name)).WithParameter(field.Name)
				}
				embeddedClass, ok := b.registry.ResolveType(elemType)
				if !ok {
					return nil, norma.NewNotASettingsClassError(elemType.String()).WithParameter(field.Name)
				}
				ed.Class = embeddedClass
			}
			groups := ed.Groups
			if len(groups) == 0 {
				groups = decl.DefaultGroups
			}
			embeds = append(embeds, norma.EmbeddedDescriptor{
				Property: field.Name,
				Class:    ed.Class,
				Groups:   append([]string(nil), groups...),
			})
			continue
		}

		if hasEmbeddedTag {
			return nil, norma.NewSchemaConflictError(class,
				fmt.Sprintf("field '%s' is tagged embedded but is not an Embedded slot", field.Name)).WithParameter(field.Name)
		}

		explicit, hasExplicit := explicitParams[field.Name]
		if !hasSettingTag && !hasExplicit {
			continue
		}
		if settingTag == "-" {
			if hasExplicit {
				return nil, norma.NewSchemaConflictError(class,
					fmt.Sprintf("field '%s' is tagged excluded but declared explicitly", field.Name)).WithParameter(field.Name)
			}
			continue
		}
		consumed[field.Name] = true

		pd, err := parseSettingTag(class, field.Name, settingTag)
		if err != nil {
			return nil, err
		}
		if hasExplicit {
			if err := mergo.Merge(&pd, explicit, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("failed to merge parameter declaration for '%s': %w", field.Name, err)
			}
			pd.Property = field.Name
		}

		probe := norma.PropertyProbe{
			Class:    class,
			Property: field.Name,
			GoType:   field.Type,
			Tag:      field.Tag,
		}
		desc, err := b.finishParameter(pd, probe, decl.DefaultGroups)
		if err != nil {
			return nil, err
		}
		params = append(params, desc)
	}

	for property := range explicitParams {
		if !consumed[property] {
			return nil, norma.NewSchemaConflictError(class,
				fmt.Sprintf("parameter declared for unknown property '%s'", property)).WithParameter(property)
		}
	}
	for property := range explicitEmbeds {
		if !consumed[property] {
			return nil, norma.NewSchemaConflictError(class,
				fmt.Sprintf("embedded settings declared for non-slot property '%s'", property)).WithParameter(property)
		}
	}

	adapter := decl.StorageAdapter
	if adapter == "" {
		adapter = b.defaultAdapter
	}

	model, err := norma.NewSchemaModel(norma.SchemaDefinition{
		Class:          class,
		StorageAdapter: adapter,
		StorageKey:     decl.StorageKey,
		Version:        decl.Version,
		Migrator:       decl.Migrator,
		DefaultGroups:  decl.DefaultGroups,
		AdapterOptions: decl.AdapterOptions,
		Parameters:     params,
		Embedded:       embeds,
	})
	if err != nil {
		return nil, err
	}

	zap.S().Debugw("built settings schema",
		"class", class,
		"adapter", model.StorageAdapter(),
		"parameters", len(params),
		"embedded", len(embeds))
	return model, nil
}

// finishParameter fills in whatever the declaration and tag left open, using
// the type guesser, and produces the final descriptor.
func (b *SchemaBuilder) finishParameter(pd norma.ParameterDeclaration, probe norma.PropertyProbe, defaultGroups []string) (norma.ParameterDescriptor, error) {
	name := pd.Name
	if name == "" {
		name = snakeCase(pd.Property)
	}

	paramType := pd.Type
	if paramType == "" {
		guessed, ok := b.guesser.GuessType(probe)
		if !ok {
			return norma.ParameterDescriptor{}, norma.NewMissingTypeError(probe.Class, probe.Property)
		}
		paramType = guessed
	}

	var nullable bool
	if pd.Nullable != nil {
		nullable = *pd.Nullable
	} else {
		guessed, ok := b.guesser.GuessNullable(probe)
		if !ok {
			return norma.ParameterDescriptor{}, norma.NewMissingNullabilityError(probe.Class, probe.Property)
		}
		nullable = guessed
	}

	options := make(map[string]any, len(pd.Options))
	for k, v := range pd.Options {
		options[k] = v
	}
	if guessed, ok := b.guesser.GuessOptions(probe); ok && len(guessed) > 0 {
		// Declared options win over guessed ones.
		if err := mergo.Merge(&options, guessed); err != nil {
			return norma.ParameterDescriptor{}, fmt.Errorf("failed to merge options for '%s': %w", probe.Property, err)
		}
	}
	if len(options) == 0 {
		options = nil
	}

	groups := pd.Groups
	if len(groups) == 0 {
		groups = defaultGroups
	}

	return norma.ParameterDescriptor{
		Property:    pd.Property,
		Name:        name,
		Type:        paramType,
		Nullable:    nullable,
		Groups:      append([]string(nil), groups...),
		Label:       pd.Label,
		Description: pd.Description,
		Options:     options,
	}, nil
}

// parseSettingTag parses a `setting:"..."` struct tag into a declaration.
// The tag is a comma-separated list: a leading bare token names the
// parameter, the remaining tokens are key=value pairs (type, label, desc,
// repeatable group) or the nullable / nonnull flags. An empty tag declares
// the parameter with everything derived.
func parseSettingTag(class, property, tag string) (norma.ParameterDeclaration, error) {
	pd := norma.ParameterDeclaration{Property: property}
	if tag == "" {
		return pd, nil
	}

	for i, token := range strings.Split(tag, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		key, value, hasValue := strings.Cut(token, "=")
		if !hasValue {
			switch key {
			case "nullable":
				pd.Nullable = boolPtr(true)
				continue
			case "nonnull":
				pd.Nullable = boolPtr(false)
				continue
			}
			if i == 0 {
				pd.Name = key
				continue
			}
			return pd, norma.NewSchemaConflictError(class,
				fmt.Sprintf("unknown token '%s' in setting tag of '%s'", key, property)).WithParameter(property)
		}
		switch key {
		case "name":
			pd.Name = value
		case "type":
			pd.Type = norma.TypeIdentifier(value)
		case "nullable":
			pd.Nullable = boolPtr(value == "true")
		case "group":
			pd.Groups = append(pd.Groups, value)
		case "label":
			pd.Label = value
		case "desc":
			pd.Description = value
		default:
			return pd, norma.NewSchemaConflictError(class,
				fmt.Sprintf("unknown key '%s' in setting tag of '%s'", key, property)).WithParameter(property)
		}
	}
	return pd, nil
}

// parseEmbeddedTag parses an `embedded:"..."` struct tag. Supported tokens:
// class=<name> and repeatable group=<name>.
func parseEmbeddedTag(class, property, tag string) (norma.EmbeddedDeclaration, error) {
	ed := norma.EmbeddedDeclaration{Property: property}
	if tag == "" {
		return ed, nil
	}

	for _, token := range strings.Split(tag, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		key, value, hasValue := strings.Cut(token, "=")
		if !hasValue {
			return ed, norma.NewSchemaConflictError(class,
				fmt.Sprintf("unknown token '%s' in embedded tag of '%s'", key, property)).WithParameter(property)
		}
		switch key {
		case "class":
			ed.Class = value
		case "group":
			ed.Groups = append(ed.Groups, value)
		default:
			return ed, norma.NewSchemaConflictError(class,
				fmt.Sprintf("unknown key '%s' in embedded tag of '%s'", key, property)).WithParameter(property)
		}
	}
	return ed, nil
}

func boolPtr(v bool) *bool { return &v }
