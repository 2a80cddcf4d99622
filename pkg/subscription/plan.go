package subscription

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultPlans []byte

// PlanCatalog maps provider plan ids to their billing period label.
type PlanCatalog struct {
	periodicity map[int64]string
}

type planFile struct {
	Plans []struct {
		ID          int64  `yaml:"id"`
		Periodicity string `yaml:"periodicity"`
	} `yaml:"plans"`
}

// LoadPlanCatalog reads a YAML catalog of the form
//
//	plans:
//	  - id: 14649
//	    periodicity: mensal
func LoadPlanCatalog(r io.Reader) (*PlanCatalog, error) {
	var f planFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidPlanCatalog, err)
	}

	c := &PlanCatalog{periodicity: make(map[int64]string, len(f.Plans))}
	for _, p := range f.Plans {
		if p.ID <= 0 || p.Periodicity == "" {
			return nil, fmt.Errorf("%w: plan %d needs a positive id and a periodicity", ErrInvalidPlanCatalog, p.ID)
		}
		if _, dup := c.periodicity[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %d", ErrInvalidPlanCatalog, p.ID)
		}
		c.periodicity[p.ID] = p.Periodicity
	}
	return c, nil
}

// DefaultPlanCatalog returns the built-in catalog.
func DefaultPlanCatalog() *PlanCatalog {
	c, err := LoadPlanCatalog(bytes.NewReader(defaultPlans))
	if err != nil {
		panic(fmt.Sprintf("subscription: embedded plan catalog: %v", err))
	}
	return c
}

// Periodicity returns the label for id, or "" when the plan is unknown.
func (c *PlanCatalog) Periodicity(id int64) string {
	return c.periodicity[id]
}
