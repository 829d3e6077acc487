package change

import (
	"fmt"

	"github.com/trialpulse/trialpulse/domain/entity"
	"gopkg.in/yaml.v3"
)

// DefaultScoreTolerance is the numeric comparator tolerance applied when a
// schema rule does not override it.
const DefaultScoreTolerance = 1.0

// FieldRule defines the comparison semantics and change kind for one
// allowlisted field of an entity type.
type FieldRule struct {
	name      string
	compare   CompareKind
	tolerance float64
	kind      Kind
}

// NewFieldRule creates a field rule. A zero tolerance on a numeric rule
// means exact numeric equality.
func NewFieldRule(name string, compare CompareKind, tolerance float64, kind Kind) FieldRule {
	return FieldRule{name: name, compare: compare, tolerance: tolerance, kind: kind}
}

// Name returns the field name.
func (r FieldRule) Name() string { return r.name }

// Compare returns the comparison semantics.
func (r FieldRule) Compare() CompareKind { return r.compare }

// Tolerance returns the numeric tolerance.
func (r FieldRule) Tolerance() float64 { return r.tolerance }

// Kind returns the change kind emitted when this field differs.
func (r FieldRule) Kind() Kind { return r.kind }

// Equal compares two values under this rule's semantics.
func (r FieldRule) Equal(oldVal, newVal any) bool {
	switch r.compare {
	case CompareNumeric:
		return equalNumeric(oldVal, newVal, r.tolerance)
	case CompareSet:
		return equalSet(oldVal, newVal)
	default:
		return equalExact(oldVal, newVal)
	}
}

// Schema is the allowlisted comparator schema for one entity type.
type Schema struct {
	entityType entity.Type
	nameField  string
	source     string
	fields     []FieldRule
}

// NewSchema creates a Schema.
func NewSchema(entityType entity.Type, nameField, source string, fields []FieldRule) Schema {
	rules := make([]FieldRule, len(fields))
	copy(rules, fields)
	return Schema{entityType: entityType, nameField: nameField, source: source, fields: rules}
}

// EntityType returns the entity type this schema describes.
func (s Schema) EntityType() entity.Type { return s.entityType }

// Source returns the upstream data source label.
func (s Schema) Source() string { return s.source }

// Fields returns the field rules in schema order.
func (s Schema) Fields() []FieldRule {
	result := make([]FieldRule, len(s.fields))
	copy(result, s.fields)
	return result
}

// FieldNames returns the allowlisted field names, which are also the
// snapshot content-hash fields.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.name
	}
	return names
}

// Name extracts the entity display name from a payload.
func (s Schema) Name(payload map[string]any) string {
	if s.nameField == "" {
		return ""
	}
	if v, ok := payload[s.nameField]; ok {
		return FormatValue(v)
	}
	return ""
}

// Validate checks that a fetched payload carries the full allowlisted
// field set. Partial payloads are rejected: a partial record would be
// misread as multiple spurious value-absent changes.
func (s Schema) Validate(payload map[string]any) error {
	var missing []string
	for _, f := range s.fields {
		if _, ok := payload[f.name]; !ok {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("payload for %s missing allowlisted fields %v", s.entityType, missing)
	}
	return nil
}

// Registry holds the comparator schema for every tracked entity type.
type Registry struct {
	schemas map[entity.Type]Schema
}

// NewRegistry creates a Registry from schemas.
func NewRegistry(schemas ...Schema) Registry {
	m := make(map[entity.Type]Schema, len(schemas))
	for _, s := range schemas {
		m[s.entityType] = s
	}
	return Registry{schemas: m}
}

// Schema returns the schema for an entity type.
func (r Registry) Schema(t entity.Type) (Schema, bool) {
	s, ok := r.schemas[t]
	return s, ok
}

// Types returns the entity types with a registered schema.
func (r Registry) Types() []entity.Type {
	types := make([]entity.Type, 0, len(r.schemas))
	for _, t := range entity.AllTypes() {
		if _, ok := r.schemas[t]; ok {
			types = append(types, t)
		}
	}
	return types
}

// DefaultRegistry returns the built-in comparator schemas with the given
// score tolerance.
func DefaultRegistry(scoreTolerance float64) Registry {
	if scoreTolerance <= 0 {
		scoreTolerance = DefaultScoreTolerance
	}
	return NewRegistry(
		NewSchema(entity.TypeDrug, "name", "pipeline", []FieldRule{
			NewFieldRule("name", CompareExact, 0, KindFieldChange),
			NewFieldRule("phase", CompareExact, 0, KindPhaseChange),
			NewFieldRule("status", CompareExact, 0, KindStatusChange),
			NewFieldRule("score", CompareNumeric, scoreTolerance, KindScoreChange),
			NewFieldRule("indications", CompareSet, 0, KindFieldChange),
			NewFieldRule("targets", CompareSet, 0, KindFieldChange),
			NewFieldRule("patents", CompareSet, 0, KindFiling),
		}),
		NewSchema(entity.TypeTrial, "title", "registry", []FieldRule{
			NewFieldRule("title", CompareExact, 0, KindFieldChange),
			NewFieldRule("phase", CompareExact, 0, KindPhaseChange),
			NewFieldRule("status", CompareExact, 0, KindStatusChange),
			NewFieldRule("enrollment", CompareNumeric, 0, KindFieldChange),
			NewFieldRule("sponsors", CompareSet, 0, KindFieldChange),
			NewFieldRule("completion_date", CompareExact, 0, KindFieldChange),
		}),
		NewSchema(entity.TypeCompany, "name", "filings", []FieldRule{
			NewFieldRule("name", CompareExact, 0, KindFieldChange),
			NewFieldRule("status", CompareExact, 0, KindStatusChange),
			NewFieldRule("pipeline_count", CompareNumeric, 0, KindFieldChange),
			NewFieldRule("filings", CompareSet, 0, KindFiling),
		}),
		NewSchema(entity.TypeFiling, "title", "filings", []FieldRule{
			NewFieldRule("title", CompareExact, 0, KindFieldChange),
			NewFieldRule("filing_type", CompareExact, 0, KindFieldChange),
			NewFieldRule("status", CompareExact, 0, KindStatusChange),
			NewFieldRule("related_drugs", CompareSet, 0, KindFieldChange),
		}),
	)
}

// schemaFile is the YAML encoding of a schema override file.
type schemaFile struct {
	Entities []struct {
		Type      string `yaml:"type"`
		NameField string `yaml:"name_field"`
		Source    string `yaml:"source"`
		Fields    []struct {
			Name      string  `yaml:"name"`
			Compare   string  `yaml:"compare"`
			Tolerance float64 `yaml:"tolerance"`
			Kind      string  `yaml:"kind"`
		} `yaml:"fields"`
	} `yaml:"entities"`
}

// LoadRegistry parses a YAML schema file into a Registry.
func LoadRegistry(raw []byte) (Registry, error) {
	var file schemaFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Registry{}, fmt.Errorf("parse schema file: %w", err)
	}

	schemas := make([]Schema, 0, len(file.Entities))
	for _, e := range file.Entities {
		entityType, err := entity.ParseType(e.Type)
		if err != nil {
			return Registry{}, fmt.Errorf("schema file: %w", err)
		}

		rules := make([]FieldRule, 0, len(e.Fields))
		for _, f := range e.Fields {
			compare := CompareKind(f.Compare)
			if compare == "" {
				compare = CompareExact
			}
			if !compare.Valid() {
				return Registry{}, fmt.Errorf("schema file: field %s.%s: unknown compare %q", e.Type, f.Name, f.Compare)
			}

			kind := Kind(f.Kind)
			if kind == "" {
				kind = KindFieldChange
			}
			if !kind.Valid() {
				return Registry{}, fmt.Errorf("schema file: field %s.%s: unknown kind %q", e.Type, f.Name, f.Kind)
			}

			rules = append(rules, NewFieldRule(f.Name, compare, f.Tolerance, kind))
		}

		schemas = append(schemas, NewSchema(entityType, e.NameField, e.Source, rules))
	}

	return NewRegistry(schemas...), nil
}
