package core

import (
	"fmt"
)

// ImportSummary counts outcomes. Total always equals Successful + Failed.
type ImportSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// ImportReport is the result of one import call.
type ImportReport struct {
	ImportID string          `json:"import_id,omitempty"`
	Sheet    string          `json:"sheet,omitempty"`
	Summary  ImportSummary   `json:"summary"`
	Results  []CommitOutcome `json:"results"`
}

// Aggregate folds outcomes into a report. Each input row number must appear
// exactly once among the outcomes, in input order.
func Aggregate(rows []CanonicalRow, outcomes []CommitOutcome) (*ImportReport, error) {
	if len(outcomes) != len(rows) {
		return nil, fmt.Errorf("aggregate: %d outcomes for %d rows", len(outcomes), len(rows))
	}

	report := &ImportReport{
		Summary: ImportSummary{Total: len(rows)},
		Results: outcomes,
	}
	for i, o := range outcomes {
		if o.Row != rows[i].Row {
			return nil, fmt.Errorf("aggregate: outcome %d is for row %d, want row %d", i, o.Row, rows[i].Row)
		}
		if o.Success {
			report.Summary.Successful++
		} else {
			report.Summary.Failed++
		}
	}
	return report, nil
}
