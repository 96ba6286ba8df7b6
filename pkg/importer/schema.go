package importer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Column declares one recognised CSV column. Aliases are matched
// case-insensitively against the header.
type Column struct {
	Field    string   `yaml:"field" json:"field"`
	Required bool     `yaml:"required" json:"required"`
	Aliases  []string `yaml:"aliases" json:"aliases"`
}

type Schema struct {
	Columns []Column `yaml:"columns" json:"columns"`
}

// LoadSchema reads a row-schema file, falling back to the compiled-in default
// when no path is configured.
func LoadSchema(path string) (Schema, error) {
	if path == "" {
		return DefaultSchema(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultSchema(), err
	}

	var schema Schema
	if err := yaml.Unmarshal(content, &schema); err != nil {
		return Schema{}, err
	}

	if len(schema.Columns) == 0 {
		return Schema{}, errors.New("no columns configured in schema file")
	}
	hasKey := false
	for _, c := range schema.Columns {
		if c.Field == FieldSKU {
			hasKey = true
		}
	}
	if !hasKey {
		return Schema{}, errors.New("schema must declare the sku column")
	}

	return schema, nil
}

const (
	FieldSKU         = "sku"
	FieldName        = "name"
	FieldDescription = "description"
	FieldActive      = "active"
)

func DefaultSchema() Schema {
	return Schema{Columns: []Column{
		{Field: FieldSKU, Required: true, Aliases: []string{"sku", "product_sku"}},
		{Field: FieldName, Required: true, Aliases: []string{"name", "product_name", "title"}},
		{Field: FieldDescription, Required: false, Aliases: []string{"description", "desc"}},
		{Field: FieldActive, Required: false, Aliases: []string{"active", "is_active", "enabled"}},
	}}
}

// resolve maps a raw header cell to a schema field, or "" when the column is
// not recognised.
func (s Schema) resolve(header string) string {
	normalized := strings.ToLower(strings.TrimSpace(header))
	for _, col := range s.Columns {
		for _, alias := range col.Aliases {
			if normalized == strings.ToLower(alias) {
				return col.Field
			}
		}
	}
	return ""
}

func (s Schema) required() []string {
	var fields []string
	for _, col := range s.Columns {
		if col.Required {
			fields = append(fields, col.Field)
		}
	}
	return fields
}
