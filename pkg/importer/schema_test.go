package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadSchemaDefaultsWithoutPath(t *testing.T) {
	schema, err := LoadSchema("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := schema.resolve("Product_SKU"); got != FieldSKU {
		t.Fatalf("expected product_sku alias to resolve to sku, got %q", got)
	}
	if got := schema.resolve("Title"); got != FieldName {
		t.Fatalf("expected title alias to resolve to name, got %q", got)
	}
	if got := schema.resolve("unknown"); got != "" {
		t.Fatalf("expected unknown column to resolve to empty, got %q", got)
	}
}

func TestLoadSchemaFromFile(t *testing.T) {
	content := `columns:
  - field: sku
    required: true
    aliases: [sku, article]
  - field: name
    required: true
    aliases: [name]
`
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing schema file: %v", err)
	}

	schema, err := LoadSchema(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := schema.resolve("Article"); got != FieldSKU {
		t.Fatalf("expected article alias to resolve to sku, got %q", got)
	}

	required := schema.required()
	if len(required) != 2 {
		t.Fatalf("expected 2 required fields, got %v", required)
	}
}

func TestLoadSchemaRejectsMissingKeyField(t *testing.T) {
	content := `columns:
  - field: name
    required: true
    aliases: [name]
`
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing schema file: %v", err)
	}

	_, err := LoadSchema(path)
	if err == nil || !strings.Contains(err.Error(), "sku") {
		t.Fatalf("expected sku column error, got %v", err)
	}
}

func TestLoadSchemaMissingFileFallsBack(t *testing.T) {
	schema, err := LoadSchema(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if len(schema.Columns) == 0 {
		t.Fatal("expected default schema alongside the error")
	}
}
