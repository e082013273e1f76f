package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tenderops/bidding-qa/internal/core/domain"
)

type schemaFile struct {
	Tables map[string]struct {
		PrimaryKey string            `yaml:"primary_key"`
		Columns    map[string]string `yaml:"columns"`
	} `yaml:"tables"`
	Collections map[string]struct {
		Facets map[string]string `yaml:"facets"`
	} `yaml:"collections"`
}

// LoadSchema reads a YAML data-model override. An empty path keeps the
// compiled-in schema.
func LoadSchema(path string) (domain.SharedSchema, error) {
	if path == "" {
		return domain.DefaultSchema(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.SharedSchema{}, fmt.Errorf("read schema file: %w", err)
	}

	var file schemaFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.SharedSchema{}, fmt.Errorf("parse schema yaml: %w", err)
	}
	if len(file.Tables) == 0 && len(file.Collections) == 0 {
		return domain.SharedSchema{}, fmt.Errorf("schema file %s declares no tables or collections", path)
	}

	schema := domain.SharedSchema{
		Tables:      make(map[string]domain.TableSchema, len(file.Tables)),
		Collections: make(map[string]domain.CollectionSchema, len(file.Collections)),
	}
	for name, table := range file.Tables {
		columns := make(map[string]domain.ColumnType, len(table.Columns))
		for column, columnType := range table.Columns {
			ct, err := parseColumnType(columnType)
			if err != nil {
				return domain.SharedSchema{}, fmt.Errorf("table %s column %s: %w", name, column, err)
			}
			columns[column] = ct
		}
		schema.Tables[name] = domain.TableSchema{
			Name:       name,
			PrimaryKey: table.PrimaryKey,
			Columns:    columns,
		}
	}
	for name, collection := range file.Collections {
		facets := make(map[string]domain.ColumnType, len(collection.Facets))
		for facet, facetType := range collection.Facets {
			ct, err := parseColumnType(facetType)
			if err != nil {
				return domain.SharedSchema{}, fmt.Errorf("collection %s facet %s: %w", name, facet, err)
			}
			facets[facet] = ct
		}
		schema.Collections[name] = domain.CollectionSchema{
			Name:   name,
			Facets: facets,
		}
	}
	return schema, nil
}

func parseColumnType(raw string) (domain.ColumnType, error) {
	switch domain.ColumnType(raw) {
	case domain.ColumnText, domain.ColumnID, domain.ColumnNumeric, domain.ColumnDate:
		return domain.ColumnType(raw), nil
	default:
		return "", fmt.Errorf("unknown column type %q", raw)
	}
}
