package model

// PartStatus is the lifecycle status of a component.
type PartStatus string

const (
	StatusActive   PartStatus = "Active"
	StatusNRND     PartStatus = "NRND"
	StatusEOL      PartStatus = "EOL"
	StatusObsolete PartStatus = "Obsolete"
)

// Parameter is one attribute value on a part, as fetched from the catalog.
// Value is the string encoding of a physical quantity ("50V", "100nF") or a
// category label ("X7R").
type Parameter struct {
	ParameterID   string `json:"parameterId"`
	ParameterName string `json:"parameterName"`
	Value         string `json:"value"`
	SortOrder     int    `json:"sortOrder"`
}

// PartAttributes is the full attribute sheet for one part. Immutable once
// fetched; identified by MPN.
type PartAttributes struct {
	MPN               string      `json:"mpn"`
	Manufacturer      string      `json:"manufacturer"`
	Category          string      `json:"category"`
	Subcategory       string      `json:"subcategory"`
	Status            PartStatus  `json:"status"`
	UnitPrice         *float64    `json:"unitPrice,omitempty"`
	QuantityAvailable *int        `json:"quantityAvailable,omitempty"`
	Parameters        []Parameter `json:"parameters"`
}

// Parameter returns the parameter with the given attribute id, or nil.
func (p *PartAttributes) Parameter(attributeID string) *Parameter {
	for i := range p.Parameters {
		if p.Parameters[i].ParameterID == attributeID {
			return &p.Parameters[i]
		}
	}
	return nil
}

// WithOverrides returns a copy of the part with the given attribute values
// replaced. Overrides for attributes the part does not carry are appended so
// downstream evaluation sees them.
func (p *PartAttributes) WithOverrides(overrides map[string]string) PartAttributes {
	out := *p
	out.Parameters = make([]Parameter, len(p.Parameters))
	copy(out.Parameters, p.Parameters)

	seen := make(map[string]bool, len(out.Parameters))
	for i := range out.Parameters {
		id := out.Parameters[i].ParameterID
		seen[id] = true
		if v, ok := overrides[id]; ok {
			out.Parameters[i].Value = v
		}
	}
	for id, v := range overrides {
		if !seen[id] {
			out.Parameters = append(out.Parameters, Parameter{
				ParameterID:   id,
				ParameterName: id,
				Value:         v,
				SortOrder:     len(out.Parameters),
			})
		}
	}
	return out
}
