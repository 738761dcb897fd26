package model

// RowStatus tracks a parts-list row through batch validation.
type RowStatus string

const (
	RowPending    RowStatus = "pending"
	RowValidating RowStatus = "validating"
	RowResolved   RowStatus = "resolved"
	RowNotFound   RowStatus = "not-found"
	RowError      RowStatus = "error"
)

// PartsListRow is one row of an uploaded parts list. The raw fields come
// straight from the file; the resolved fields are merged in by the
// validation orchestrator as streamed results arrive.
type PartsListRow struct {
	RowIndex        int       `json:"rowIndex"`
	RawMPN          string    `json:"rawMpn"`
	RawManufacturer string    `json:"rawManufacturer,omitempty"`
	RawDescription  string    `json:"rawDescription,omitempty"`
	Status          RowStatus `json:"status"`

	ResolvedPart         *PartAttributes      `json:"resolvedPart,omitempty"`
	SourceAttributes     *PartAttributes      `json:"sourceAttributes,omitempty"`
	SuggestedReplacement *XrefRecommendation  `json:"suggestedReplacement,omitempty"`
	AllRecommendations   []XrefRecommendation `json:"allRecommendations,omitempty"`
	ErrorMessage         string               `json:"errorMessage,omitempty"`
}

// CloneRows returns a deep-enough copy of a row collection for observer
// snapshots: the slice and row structs are copied, the resolved parts and
// recommendations are shared because they are never mutated after apply.
func CloneRows(rows []PartsListRow) []PartsListRow {
	out := make([]PartsListRow, len(rows))
	copy(out, rows)
	return out
}
