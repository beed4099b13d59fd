package importer

import "pharmaledger/internal/core/id"

// Preview bounds of a Result.
const (
	MaxCreatedPreview = 10
	MaxMergedPreview  = 10
	MaxErrorPreview   = 20
	MaxWarningPreview = 20
)

// Outcome is the per-row result.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeMerged   Outcome = "merged"
	OutcomeRejected Outcome = "rejected"
)

// RowError describes a rejected row. It is data, not an error value.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"error"`
}

// Warning is a non-fatal note about a row, such as an unparseable expiry date.
type Warning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// CreatedItem previews a row that created a new item.
type CreatedItem struct {
	Row      int    `json:"row"`
	ItemID   id.ID  `json:"id"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// MergedItem previews a row merged into an existing item.
type MergedItem struct {
	Row     int    `json:"row"`
	ItemID  id.ID  `json:"id"`
	Name    string `json:"name"`
	Added   int64  `json:"added"`
	Total   int64  `json:"total"`
	Message string `json:"message"`
}

// Result summarizes an import. Counts are exact; the lists are bounded previews.
type Result struct {
	// BatchNumber is the reference_id of every movement this run wrote.
	BatchNumber  string        `json:"batch_number,omitempty"`
	TotalRows    int           `json:"total_rows"`
	Created      int           `json:"imported_count"`
	Merged       int           `json:"merged_count"`
	Rejected     int           `json:"errors_count"`
	CreatedItems []CreatedItem `json:"imported_items"`
	MergedItems  []MergedItem  `json:"merged_items"`
	Errors       []RowError    `json:"errors"`
	Warnings     []Warning     `json:"warnings"`
}

func newResult(total int) *Result {
	return &Result{
		TotalRows:    total,
		CreatedItems: []CreatedItem{},
		MergedItems:  []MergedItem{},
		Errors:       []RowError{},
		Warnings:     []Warning{},
	}
}

func (r *Result) created(c CreatedItem) {
	r.Created++
	if len(r.CreatedItems) < MaxCreatedPreview {
		r.CreatedItems = append(r.CreatedItems, c)
	}
}

func (r *Result) merged(m MergedItem) {
	r.Merged++
	if len(r.MergedItems) < MaxMergedPreview {
		r.MergedItems = append(r.MergedItems, m)
	}
}

func (r *Result) rejected(e RowError) {
	r.Rejected++
	if len(r.Errors) < MaxErrorPreview {
		r.Errors = append(r.Errors, e)
	}
}

func (r *Result) warn(w Warning) {
	if len(r.Warnings) < MaxWarningPreview {
		r.Warnings = append(r.Warnings, w)
	}
}
