package model

import "time"

// SchemaInfo is a full read of a relational catalog
type SchemaInfo struct {
	Tables          []*TableInfo  `json:"tables"`
	ForeignKeys     []*ForeignKey `json:"foreignKeys"`
	LastRefreshedAt time.Time     `json:"lastRefreshedAt"`
}

type TableInfo struct {
	Schema      string        `json:"schema"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Columns     []*ColumnInfo `json:"columns"`
}

// QualifiedName returns schema.name unless the schema is a default one
func (t *TableInfo) QualifiedName() string {
	switch t.Schema {
	case "", "public", "main":
		return t.Name
	default:
		return t.Schema + "." + t.Name
	}
}

type ColumnInfo struct {
	Name         string `json:"name"`
	DataType     string `json:"dataType"`
	IsNullable   bool   `json:"isNullable"`
	DefaultExpr  string `json:"defaultExpr,omitempty"`
	IsPrimaryKey bool   `json:"isPrimaryKey"`
	Description  string `json:"description,omitempty"`
}

type ForeignKey struct {
	Schema    string `json:"schema"`
	Table     string `json:"table"`
	Column    string `json:"column"`
	RefSchema string `json:"refSchema"`
	RefTable  string `json:"refTable"`
	RefColumn string `json:"refColumn"`
}

// FindTable looks up a table by schema and name
func (s *SchemaInfo) FindTable(schema, name string) *TableInfo {
	for _, t := range s.Tables {
		if t.Schema == schema && t.Name == name {
			return t
		}
	}
	return nil
}
