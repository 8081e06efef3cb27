package schema

import (
	"context"
	"sort"
	"strings"

	"github.com/m-mizutani/recall/pkg/model"
	"github.com/m-mizutani/recall/pkg/utils/logging"
)

const (
	scoreTableDescription  = 15
	scoreTableName         = 10
	scoreColumnDescription = 5
	scoreColumnName        = 3
)

type scoredTable struct {
	table *model.TableInfo
	score int
}

func matchesAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	text = normalize(text)
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func scoreTable(t *model.TableInfo, keywords []string) int {
	score := 0
	if matchesAny(t.Description, keywords) {
		score += scoreTableDescription
	}
	if matchesAny(t.Name, keywords) {
		score += scoreTableName
	}
	for _, c := range t.Columns {
		if matchesAny(c.Description, keywords) {
			score += scoreColumnDescription
		}
		if matchesAny(c.Name, keywords) {
			score += scoreColumnName
		}
	}
	return score
}

// SelectTables picks at most maxTables tables for query. Scoring only
// applies when there are more tables than maxTables and query has
// keywords; otherwise, or when nothing scores, the first tables in catalog
// order are taken.
func SelectTables(tables []*model.TableInfo, query string, maxTables int) []*model.TableInfo {
	first := func() []*model.TableInfo {
		return tables[:min(len(tables), maxTables)]
	}

	if len(tables) <= maxTables {
		return first()
	}
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return first()
	}

	var scored []scoredTable
	for _, t := range tables {
		if s := scoreTable(t, keywords); s > 0 {
			scored = append(scored, scoredTable{table: t, score: s})
		}
	}
	if len(scored) == 0 {
		return first()
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > maxTables {
		scored = scored[:maxTables]
	}

	selected := make([]*model.TableInfo, len(scored))
	for i, s := range scored {
		selected[i] = s.table
	}
	return selected
}

// FilteredSchema renders the tables relevant to query. An empty string means
// the schema is not available.
func (e *Engine) FilteredSchema(ctx context.Context, query string) string {
	info := e.Schema()
	if info == nil || !e.IsAvailable() {
		return ""
	}

	selected := SelectTables(info.Tables, query, e.maxTables)
	logging.From(ctx).Debug("schema filtered",
		"total", len(info.Tables),
		"selected", len(selected))

	return Render(info, selected)
}
