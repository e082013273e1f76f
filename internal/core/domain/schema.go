package domain

const (
	CollectionPolicyChunks  = "policy_chunks"
	CollectionOpinionChunks = "opinion_chunks"
)

type ColumnType string

const (
	ColumnText    ColumnType = "text"
	ColumnID      ColumnType = "id"
	ColumnNumeric ColumnType = "numeric"
	ColumnDate    ColumnType = "date"
)

type TableSchema struct {
	Name       string
	PrimaryKey string
	Columns    map[string]ColumnType
}

func (t TableSchema) HasColumn(name string) bool {
	_, ok := t.Columns[name]
	return ok
}

type CollectionSchema struct {
	Name   string
	Facets map[string]ColumnType
}

// SharedSchema declares every relational table and vector collection
// the pipeline may touch. Both validators and the SQL translator
// resolve field names against it; nothing outside this schema is ever
// queryable.
type SharedSchema struct {
	Tables      map[string]TableSchema
	Collections map[string]CollectionSchema
}

func (s SharedSchema) Table(name string) (TableSchema, bool) {
	t, ok := s.Tables[name]
	return t, ok
}

func (s SharedSchema) Collection(name string) (CollectionSchema, bool) {
	c, ok := s.Collections[name]
	return c, ok
}

// ResolveColumn reports the declared type of table.column, looking
// across all tables when table is empty.
func (s SharedSchema) ResolveColumn(table, column string) (ColumnType, bool) {
	if table != "" {
		t, ok := s.Tables[table]
		if !ok {
			return "", false
		}
		ct, ok := t.Columns[column]
		return ct, ok
	}
	for _, t := range s.Tables {
		if ct, ok := t.Columns[column]; ok {
			return ct, true
		}
	}
	return "", false
}

// ResolveFacet reports the declared type of a metadata facet in any
// collection.
func (s SharedSchema) ResolveFacet(name string) (ColumnType, bool) {
	for _, c := range s.Collections {
		if ct, ok := c.Facets[name]; ok {
			return ct, true
		}
	}
	return "", false
}

// KnownField reports whether a slot or filter field resolves to a
// declared column (SQL path) or facet (RAG path).
func (s SharedSchema) KnownField(table, name string) bool {
	if _, ok := s.ResolveColumn(table, name); ok {
		return true
	}
	if _, ok := s.ResolveFacet(name); ok {
		return true
	}
	return false
}

// DefaultSchema is the compiled-in bidding data model. A YAML override
// with the same shape may replace it at startup.
func DefaultSchema() SharedSchema {
	return SharedSchema{
		Tables: map[string]TableSchema{
			"tender_project": {
				Name:       "tender_project",
				PrimaryKey: "project_id",
				Columns: map[string]ColumnType{
					"project_id":   ColumnID,
					"project_name": ColumnText,
					"company_id":   ColumnID,
					"company_name": ColumnText,
					"amount":       ColumnNumeric,
					"publish_date": ColumnDate,
					"award_date":   ColumnDate,
					"status":       ColumnText,
					"region":       ColumnText,
				},
			},
			"company_master": {
				Name:       "company_master",
				PrimaryKey: "company_id",
				Columns: map[string]ColumnType{
					"company_id":         ColumnID,
					"company_name":       ColumnText,
					"credit_code":        ColumnText,
					"legal_person":       ColumnText,
					"registered_capital": ColumnNumeric,
					"region":             ColumnText,
					"phone":              ColumnText,
				},
			},
			"supplier_item_price": {
				Name:       "supplier_item_price",
				PrimaryKey: "item_id",
				Columns: map[string]ColumnType{
					"item_id":       ColumnID,
					"item_name":     ColumnText,
					"supplier_id":   ColumnID,
					"supplier_name": ColumnText,
					"unit_price":    ColumnNumeric,
					"quote_date":    ColumnDate,
					"region":        ColumnText,
				},
			},
		},
		Collections: map[string]CollectionSchema{
			CollectionPolicyChunks: {
				Name: CollectionPolicyChunks,
				Facets: map[string]ColumnType{
					"chunk_id":     ColumnID,
					"title":        ColumnText,
					"company_id":   ColumnID,
					"project_id":   ColumnID,
					"publish_date": ColumnDate,
					"source_web":   ColumnText,
					"date":         ColumnDate,
				},
			},
			CollectionOpinionChunks: {
				Name: CollectionOpinionChunks,
				Facets: map[string]ColumnType{
					"chunk_id":     ColumnID,
					"title":        ColumnText,
					"company_id":   ColumnID,
					"project_id":   ColumnID,
					"publish_date": ColumnDate,
					"source_web":   ColumnText,
					"sentiment":    ColumnText,
					"date":         ColumnDate,
				},
			},
		},
	}
}
