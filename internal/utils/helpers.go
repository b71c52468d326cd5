package utils

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/triplelock/internal/entity"
)

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func stringList(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}

// ProjectMap renders a project for the wire.
func ProjectMap(p *entity.Project) map[string]any {
	return map[string]any{
		"id":         p.ID.String(),
		"name":       p.Name,
		"ngo_id":     p.NGOID,
		"created_at": formatTime(p.CreatedAt),
	}
}

// ExpenditureMap renders the full aggregate. Amounts are decimal strings so
// no precision is lost in the float-only Struct encoding.
func ExpenditureMap(e *entity.Expenditure) map[string]any {
	m := map[string]any{
		"id":          e.ID.String(),
		"project_id":  e.ProjectID.String(),
		"vendor_id":   strOrEmpty(e.VendorID),
		"amount":      e.Amount.String(),
		"description": e.Description,
		"category":    e.Category,
		"status":      string(e.Status),
		"created_by":  e.CreatedBy,
		"created_at":  formatTime(e.CreatedAt),
		"updated_at":  formatTime(e.UpdatedAt),
		"version":     e.Version,
		"quorum": map[string]any{
			"required": e.Quorum.Required,
			"current":  e.Quorum.Current,
			"achieved": e.Quorum.Achieved,
		},
	}
	if e.QuorumReachedAt != nil {
		m["quorum_reached_at"] = formatTime(*e.QuorumReachedAt)
	}
	if p := e.VendorProof; p != nil {
		m["vendor_proof"] = map[string]any{
			"vendor_id": p.VendorID,
			"images":    stringList(p.Images),
			"location": map[string]any{
				"latitude":  p.Location.Latitude,
				"longitude": p.Location.Longitude,
			},
			"description":  p.Description,
			"submitted_at": formatTime(p.SubmittedAt),
		}
	}
	if v := e.AIVerification; v != nil {
		m["ai_verification"] = map[string]any{
			"authenticity": v.Authenticity,
			"anomalies":    stringList(v.Anomalies),
			"verified":     v.Verified,
			"threshold":    v.Threshold,
			"verified_at":  formatTime(v.VerifiedAt),
		}
	}
	votes := make([]any, 0, len(e.Votes))
	for _, v := range e.Votes {
		vm := map[string]any{
			"beneficiary_id": v.BeneficiaryID,
			"approved":       v.Approved,
			"cast_at":        formatTime(v.CastAt),
			"voted_at":       formatTime(v.VotedAt),
		}
		if v.Feedback != nil {
			vm["feedback"] = *v.Feedback
		}
		votes = append(votes, vm)
	}
	m["votes"] = votes
	if r := e.Release; r != nil {
		m["release"] = map[string]any{
			"receipt_id":  r.ReceiptID,
			"released_by": r.ReleasedBy,
			"released_at": formatTime(r.ReleasedAt),
		}
	}
	return m
}

// EventMap renders an event; the payload is decoded back into a JSON object.
func EventMap(ev entity.Event) (map[string]any, error) {
	m := map[string]any{
		"id":             ev.ID.String(),
		"expenditure_id": ev.ExpenditureID.String(),
		"seq":            ev.Seq,
		"type":           string(ev.Type),
		"actor_id":       ev.ActorID,
		"from_status":    string(ev.FromStatus),
		"to_status":      string(ev.ToStatus),
		"occurred_at":    formatTime(ev.OccurredAt),
	}
	if len(ev.Payload) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode payload of event %s: %w", ev.ID, err)
		}
		m["payload"] = payload
	}
	return m, nil
}

// ToStruct wraps a map in a Struct.
func ToStruct(m map[string]any) (*structpb.Struct, error) {
	return structpb.NewStruct(m)
}

// --- request field readers

// String returns a trimmed string field, or "" when absent.
func String(s *structpb.Struct, key string) string {
	v, ok := s.GetFields()[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

// OptionalString distinguishes an absent or null field from an empty one.
func OptionalString(s *structpb.Struct, key string) *string {
	v, ok := s.GetFields()[key]
	if !ok {
		return nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil
	}
	out := v.GetStringValue()
	return &out
}

// UUID parses a required UUID field.
func UUID(s *structpb.Struct, key string) (uuid.UUID, error) {
	raw := String(s, key)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s is required", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a UUID", key)
	}
	return id, nil
}

// OptionalUUID parses a UUID field that may be absent.
func OptionalUUID(s *structpb.Struct, key string) (*uuid.UUID, error) {
	if String(s, key) == "" {
		return nil, nil
	}
	id, err := UUID(s, key)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Bool reads a boolean field; ok is false when it is absent or not a bool.
func Bool(s *structpb.Struct, key string) (value, ok bool) {
	v, present := s.GetFields()[key]
	if !present {
		return false, false
	}
	b, isBool := v.GetKind().(*structpb.Value_BoolValue)
	if !isBool {
		return false, false
	}
	return b.BoolValue, true
}

// Number reads a numeric field, defaulting to 0.
func Number(s *structpb.Struct, key string) float64 {
	return s.GetFields()[key].GetNumberValue()
}

// Decimal accepts either a decimal string or a JSON number.
func Decimal(s *structpb.Struct, key string) (decimal.Decimal, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s is required", key)
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(strings.TrimSpace(k.StringValue))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s must be a decimal number", key)
		}
		return d, nil
	case *structpb.Value_NumberValue:
		return decimal.NewFromFloat(k.NumberValue), nil
	default:
		return decimal.Zero, fmt.Errorf("%s must be a decimal number", key)
	}
}

// Strings reads a list of strings; non-string entries are kept as "" so
// validation can reject them.
func Strings(s *structpb.Struct, key string) []string {
	list := s.GetFields()[key].GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out
}

// Object reads a nested object field, or nil.
func Object(s *structpb.Struct, key string) *structpb.Struct {
	return s.GetFields()[key].GetStructValue()
}
