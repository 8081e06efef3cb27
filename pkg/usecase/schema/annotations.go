package schema

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/recall/pkg/model"
	"gopkg.in/yaml.v3"
)

// Annotations supplies descriptions for catalogs without comments. Tables
// are keyed by name or schema.name.
//
//	tables:
//	  vendedor:
//	    description: Sales staff
//	    columns:
//	      nome: Full name
type Annotations struct {
	Tables map[string]TableAnnotation `yaml:"tables"`
}

type TableAnnotation struct {
	Description string            `yaml:"description"`
	Columns     map[string]string `yaml:"columns"`
}

// LoadAnnotations reads an annotations YAML file
func LoadAnnotations(path string) (*Annotations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read annotations", goerr.V("path", path))
	}

	var a Annotations
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, goerr.Wrap(err, "failed to parse annotations", goerr.V("path", path))
	}
	return &a, nil
}

func (a *Annotations) lookup(t *model.TableInfo) (TableAnnotation, bool) {
	if ta, ok := a.Tables[t.Schema+"."+t.Name]; ok {
		return ta, true
	}
	ta, ok := a.Tables[t.Name]
	return ta, ok
}

// Apply fills empty descriptions of info. Descriptions from the catalog are
// kept.
func (a *Annotations) Apply(info *model.SchemaInfo) {
	for _, t := range info.Tables {
		ta, ok := a.lookup(t)
		if !ok {
			continue
		}
		if t.Description == "" {
			t.Description = ta.Description
		}
		for _, c := range t.Columns {
			if c.Description == "" {
				c.Description = ta.Columns[c.Name]
			}
		}
	}
}
