// Package oracle is the client side of the external document analysis
// capability. The engine treats it as a black box returning an authenticity
// score and a list of anomalies.
package oracle

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/triplelock/internal/entity"
)

// Evidence is what the oracle is asked to analyse.
type Evidence struct {
	ExpenditureID uuid.UUID       `json:"expenditure_id"`
	VendorID      string          `json:"vendor_id"`
	Amount        string          `json:"amount"`
	Category      string          `json:"category"`
	Images        []string        `json:"images"`
	Location      entity.Location `json:"location"`
	Description   string          `json:"description,omitempty"`
}

// Analysis is the oracle's verdict plus its raw payload.
type Analysis struct {
	Authenticity float64
	Anomalies    []string
	Raw          json.RawMessage
}

// Analyzer may fail with a transient error; callers must not read a failure
// as evidence of fraud.
type Analyzer interface {
	Analyze(ctx context.Context, ev Evidence) (Analysis, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, ev Evidence) (Analysis, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, ev Evidence) (Analysis, error) {
	return f(ctx, ev)
}

// EvidenceFrom builds the oracle request for an expenditure with a proof.
func EvidenceFrom(exp *entity.Expenditure) Evidence {
	ev := Evidence{
		ExpenditureID: exp.ID,
		Amount:        exp.Amount.StringFixed(2),
		Category:      exp.Category,
	}
	if exp.VendorID != nil {
		ev.VendorID = *exp.VendorID
	}
	if p := exp.VendorProof; p != nil {
		ev.Images = append([]string(nil), p.Images...)
		ev.Location = p.Location
		ev.Description = p.Description
	}
	return ev
}
