package schema

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/recall/pkg/model"
)

// Render writes tables in a terse line format:
//
//	name -- description: col type PK "col description", col type
//
// Foreign keys between rendered tables follow on a last line.
func Render(info *model.SchemaInfo, tables []*model.TableInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Database schema: %d tables, showing %d\n", len(info.Tables), len(tables))

	shown := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		shown[t.Schema+"."+t.Name] = struct{}{}

		b.WriteString(t.QualifiedName())
		if t.Description != "" {
			b.WriteString(" -- ")
			b.WriteString(t.Description)
		}
		b.WriteString(": ")

		cols := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			col := c.Name + " " + c.DataType
			if c.IsPrimaryKey {
				col += " PK"
			}
			if c.Description != "" {
				col += fmt.Sprintf(" %q", c.Description)
			}
			cols = append(cols, col)
		}
		b.WriteString(strings.Join(cols, ", "))
		b.WriteString("\n")
	}

	var refs []string
	for _, fk := range info.ForeignKeys {
		_, from := shown[fk.Schema+"."+fk.Table]
		_, to := shown[fk.RefSchema+"."+fk.RefTable]
		if from && to {
			refs = append(refs, fmt.Sprintf("%s.%s -> %s.%s", fk.Table, fk.Column, fk.RefTable, fk.RefColumn))
		}
	}
	if len(refs) > 0 {
		b.WriteString("Relations: ")
		b.WriteString(strings.Join(refs, ", "))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
