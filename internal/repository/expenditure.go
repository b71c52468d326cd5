package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
)

var expenditureColumns = []string{
	"id", "project_id", "vendor_id", "amount", "description", "category", "status", "created_by",
	"required_quorum", "approval_count", "quorum_achieved", "quorum_reached_at",
	"release_receipt_id", "released_by", "released_at", "created_at", "updated_at", "version",
}

// ExpenditureFilter narrows ListExpenditures. Zero values match everything.
type ExpenditureFilter struct {
	ProjectID *uuid.UUID
	Status    constants.ExpenditureStatus
	VendorID  string
	Limit     int
}

// Mutation is one atomic write against an expenditure: the new header, any
// sub-record created by the operation and the events it emits. It is applied
// only if the stored row is still at ExpectedVersion.
type Mutation struct {
	Expenditure     *entity.Expenditure
	ExpectedVersion int
	Proof           *entity.VendorProof
	Verification    *entity.AIVerification
	Vote            *entity.BeneficiaryVote
	Events          []entity.Event
}

type ExpenditureRepository interface {
	Create(ctx context.Context, exp *entity.Expenditure, events []entity.Event) ([]entity.Event, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Expenditure, error)
	List(ctx context.Context, filter ExpenditureFilter) ([]*entity.Expenditure, error)
	Apply(ctx context.Context, m Mutation) ([]entity.Event, error)
	ListEvents(ctx context.Context, expenditureID uuid.UUID) ([]entity.Event, error)
}

type expenditureRepository struct {
	store  *Store
	logger *slog.Logger
}

func NewExpenditureRepository(store *Store, logger *slog.Logger) ExpenditureRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &expenditureRepository{store: store, logger: logger}
}

func (r *expenditureRepository) Create(ctx context.Context, exp *entity.Expenditure, events []entity.Event) ([]entity.Event, error) {
	var out []entity.Event
	err := r.store.withTx(ctx, func(tx dialect.Tx) error {
		q, args := r.store.builder().Insert(tableExpenditures).
			Columns(expenditureColumns...).
			Values(expenditureValues(exp)...).
			Query()
		if _, err := exec(ctx, tx, q, args); err != nil {
			return fmt.Errorf("insert expenditure: %w", err)
		}
		var err error
		out, err = r.insertEvents(ctx, tx, events)
		return err
	})
	if err != nil {
		r.logger.Error("failed to create expenditure", "expenditure_id", exp.ID, "error", err)
		return nil, err
	}
	return out, nil
}

func (r *expenditureRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Expenditure, error) {
	ex := r.store.drv
	q, args := r.store.builder().Select(expenditureColumns...).
		From(r.store.builder().Table(tableExpenditures)).
		Where(entsql.EQ("id", id)).
		Query()
	list, err := r.scanExpenditures(ctx, ex, q, args)
	if err != nil {
		r.logger.Error("failed to load expenditure", "expenditure_id", id, "error", err)
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.NewNotFoundError("expenditure not found").WithExpenditure(id.String(), "")
	}
	exp := list[0]
	if err := r.loadChildren(ctx, ex, exp); err != nil {
		r.logger.Error("failed to load expenditure records", "expenditure_id", id, "error", err)
		return nil, err
	}
	return exp, nil
}

func (r *expenditureRepository) List(ctx context.Context, filter ExpenditureFilter) ([]*entity.Expenditure, error) {
	ex := r.store.drv
	sel := r.store.builder().Select(expenditureColumns...).
		From(r.store.builder().Table(tableExpenditures)).
		OrderBy("created_at", "id")
	var preds []*entsql.Predicate
	if filter.ProjectID != nil {
		preds = append(preds, entsql.EQ("project_id", *filter.ProjectID))
	}
	if filter.Status != "" {
		preds = append(preds, entsql.EQ("status", string(filter.Status)))
	}
	if filter.VendorID != "" {
		preds = append(preds, entsql.EQ("vendor_id", filter.VendorID))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	if filter.Limit > 0 {
		sel.Limit(filter.Limit)
	}
	q, args := sel.Query()
	list, err := r.scanExpenditures(ctx, ex, q, args)
	if err != nil {
		r.logger.Error("failed to list expenditures", "error", err)
		return nil, err
	}
	for _, exp := range list {
		if err := r.loadChildren(ctx, ex, exp); err != nil {
			r.logger.Error("failed to load expenditure records", "expenditure_id", exp.ID, "error", err)
			return nil, err
		}
	}
	return list, nil
}

// Apply writes m in one transaction. A stale ExpectedVersion yields a
// Conflict error and nothing is written.
func (r *expenditureRepository) Apply(ctx context.Context, m Mutation) ([]entity.Event, error) {
	exp := m.Expenditure
	if exp == nil {
		return nil, errors.New("mutation without expenditure")
	}
	next := m.ExpectedVersion + 1
	var out []entity.Event
	err := r.store.withTx(ctx, func(tx dialect.Tx) error {
		upd := r.store.builder().Update(tableExpenditures).
			Set("vendor_id", nullString(exp.VendorID)).
			Set("status", string(exp.Status)).
			Set("approval_count", exp.Quorum.Current).
			Set("quorum_achieved", exp.Quorum.Achieved).
			Set("quorum_reached_at", nullTime(exp.QuorumReachedAt)).
			Set("updated_at", exp.UpdatedAt).
			Set("version", next)
		if exp.Release != nil {
			upd.Set("release_receipt_id", exp.Release.ReceiptID).
				Set("released_by", exp.Release.ReleasedBy).
				Set("released_at", exp.Release.ReleasedAt)
		}
		q, args := upd.Where(entsql.And(
			entsql.EQ("id", exp.ID),
			entsql.EQ("version", m.ExpectedVersion),
		)).Query()
		n, err := exec(ctx, tx, q, args)
		if err != nil {
			return fmt.Errorf("update expenditure: %w", err)
		}
		if n == 0 {
			return common.NewConflictError("expenditure was modified concurrently").
				WithExpenditure(exp.ID.String(), string(exp.Status))
		}

		if p := m.Proof; p != nil {
			images, err := json.Marshal(p.Images)
			if err != nil {
				return err
			}
			q, args := r.store.builder().Insert(tableVendorProofs).
				Columns("expenditure_id", "vendor_id", "images", "latitude", "longitude", "description", "submitted_at").
				Values(exp.ID, p.VendorID, string(images), p.Location.Latitude, p.Location.Longitude, p.Description, p.SubmittedAt).
				Query()
			if _, err := exec(ctx, tx, q, args); err != nil {
				return fmt.Errorf("insert vendor proof: %w", err)
			}
		}

		if v := m.Verification; v != nil {
			anomalies, err := json.Marshal(nonNil(v.Anomalies))
			if err != nil {
				return err
			}
			var raw any
			if len(v.Raw) > 0 {
				raw = string(v.Raw)
			}
			q, args := r.store.builder().Insert(tableVerifications).
				Columns("expenditure_id", "raw", "authenticity", "anomalies", "verified", "threshold", "verified_at").
				Values(exp.ID, raw, v.Authenticity, string(anomalies), v.Verified, v.Threshold, v.VerifiedAt).
				Query()
			if _, err := exec(ctx, tx, q, args); err != nil {
				return fmt.Errorf("insert verification: %w", err)
			}
		}

		if v := m.Vote; v != nil {
			q, args := r.store.builder().Insert(tableVotes).
				Columns("id", "expenditure_id", "beneficiary_id", "approved", "feedback", "cast_at", "voted_at").
				Values(uuid.New(), exp.ID, v.BeneficiaryID, v.Approved, nullString(v.Feedback), v.CastAt, v.VotedAt).
				OnConflict(
					entsql.ConflictColumns("expenditure_id", "beneficiary_id"),
					entsql.ResolveWith(func(u *entsql.UpdateSet) {
						u.SetExcluded("approved")
						u.SetExcluded("feedback")
						u.SetExcluded("voted_at")
					}),
				).
				Query()
			if _, err := exec(ctx, tx, q, args); err != nil {
				return fmt.Errorf("upsert vote: %w", err)
			}
		}

		out, err = r.insertEvents(ctx, tx, m.Events)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			r.logger.Warn("optimistic version check failed", "expenditure_id", exp.ID, "expected_version", m.ExpectedVersion)
		} else {
			r.logger.Error("failed to apply expenditure mutation", "expenditure_id", exp.ID, "error", err)
		}
		return nil, err
	}
	exp.Version = next
	return out, nil
}

func (r *expenditureRepository) ListEvents(ctx context.Context, expenditureID uuid.UUID) ([]entity.Event, error) {
	q, args := r.store.builder().
		Select("seq", "id", "expenditure_id", "type", "actor_id", "from_status", "to_status", "payload", "occurred_at").
		From(r.store.builder().Table(tableEvents)).
		Where(entsql.EQ("expenditure_id", expenditureID)).
		OrderBy("seq").
		Query()
	rows, err := query(ctx, r.store.drv, q, args)
	if err != nil {
		r.logger.Error("failed to list events", "expenditure_id", expenditureID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.Event
	for rows.Next() {
		var (
			ev      entity.Event
			actor   sql.NullString
			from    sql.NullString
			to      string
			typ     string
			payload []byte
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.ExpenditureID, &typ, &actor, &from, &to, &payload, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = constants.EventType(typ)
		ev.ActorID = actor.String
		ev.FromStatus = constants.ExpenditureStatus(from.String)
		ev.ToStatus = constants.ExpenditureStatus(to)
		if len(payload) > 0 {
			ev.Payload = json.RawMessage(payload)
		}
		ev.OccurredAt = ev.OccurredAt.UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *expenditureRepository) insertEvents(ctx context.Context, tx dialect.Tx, events []entity.Event) ([]entity.Event, error) {
	out := make([]entity.Event, 0, len(events))
	for _, ev := range events {
		var payload any
		if len(ev.Payload) > 0 {
			payload = string(ev.Payload)
		}
		q, args := r.store.builder().Insert(tableEvents).
			Columns("id", "expenditure_id", "type", "actor_id", "from_status", "to_status", "payload", "occurred_at").
			Values(ev.ID, ev.ExpenditureID, string(ev.Type), emptyAsNull(ev.ActorID), emptyAsNull(string(ev.FromStatus)),
				string(ev.ToStatus), payload, ev.OccurredAt).
			Returning("seq").
			Query()
		rows, err := query(ctx, tx, q, args)
		if err != nil {
			return nil, fmt.Errorf("insert event %s: %w", ev.Type, err)
		}
		if rows.Next() {
			if err := rows.Scan(&ev.Seq); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan event seq: %w", err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *expenditureRepository) scanExpenditures(ctx context.Context, ex dialect.ExecQuerier, q string, args []any) ([]*entity.Expenditure, error) {
	rows, err := query(ctx, ex, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Expenditure
	for rows.Next() {
		var (
			exp        entity.Expenditure
			vendor     sql.NullString
			status     string
			reachedAt  sql.NullTime
			receipt    sql.NullString
			releasedBy sql.NullString
			releasedAt sql.NullTime
			quorumOK   bool
			required   int
			approvals  int
		)
		if err := rows.Scan(
			&exp.ID, &exp.ProjectID, &vendor, &exp.Amount, &exp.Description, &exp.Category, &status, &exp.CreatedBy,
			&required, &approvals, &quorumOK, &reachedAt,
			&receipt, &releasedBy, &releasedAt, &exp.CreatedAt, &exp.UpdatedAt, &exp.Version,
		); err != nil {
			return nil, fmt.Errorf("scan expenditure: %w", err)
		}
		if vendor.Valid {
			v := vendor.String
			exp.VendorID = &v
		}
		exp.Status = constants.ExpenditureStatus(status)
		exp.Quorum = entity.QuorumState{Required: required, Current: approvals, Achieved: quorumOK}
		if reachedAt.Valid {
			t := reachedAt.Time.UTC()
			exp.QuorumReachedAt = &t
		}
		if receipt.Valid {
			exp.Release = &entity.Release{
				ReceiptID:  receipt.String,
				ReleasedBy: releasedBy.String,
				ReleasedAt: releasedAt.Time.UTC(),
			}
		}
		exp.CreatedAt = exp.CreatedAt.UTC()
		exp.UpdatedAt = exp.UpdatedAt.UTC()
		out = append(out, &exp)
	}
	return out, rows.Err()
}

// loadChildren fills proof, verification and votes. Each query's rows are
// closed before the next one runs; SQLite is held to a single connection.
func (r *expenditureRepository) loadChildren(ctx context.Context, ex dialect.ExecQuerier, exp *entity.Expenditure) error {
	proof, err := r.loadProof(ctx, ex, exp.ID)
	if err != nil {
		return err
	}
	exp.VendorProof = proof

	ver, err := r.loadVerification(ctx, ex, exp.ID)
	if err != nil {
		return err
	}
	exp.AIVerification = ver

	votes, err := r.loadVotes(ctx, ex, exp.ID)
	if err != nil {
		return err
	}
	exp.Votes = votes
	return nil
}

func (r *expenditureRepository) loadProof(ctx context.Context, ex dialect.ExecQuerier, id uuid.UUID) (*entity.VendorProof, error) {
	q, args := r.store.builder().
		Select("vendor_id", "images", "latitude", "longitude", "description", "submitted_at").
		From(r.store.builder().Table(tableVendorProofs)).
		Where(entsql.EQ("expenditure_id", id)).
		Query()
	rows, err := query(ctx, ex, q, args)
	if err != nil {
		return nil, fmt.Errorf("query vendor proof: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var (
		p      entity.VendorProof
		images []byte
	)
	if err := rows.Scan(&p.VendorID, &images, &p.Location.Latitude, &p.Location.Longitude, &p.Description, &p.SubmittedAt); err != nil {
		return nil, fmt.Errorf("scan vendor proof: %w", err)
	}
	if err := json.Unmarshal(images, &p.Images); err != nil {
		return nil, fmt.Errorf("decode proof images: %w", err)
	}
	p.SubmittedAt = p.SubmittedAt.UTC()
	return &p, nil
}

func (r *expenditureRepository) loadVerification(ctx context.Context, ex dialect.ExecQuerier, id uuid.UUID) (*entity.AIVerification, error) {
	q, args := r.store.builder().
		Select("raw", "authenticity", "anomalies", "verified", "threshold", "verified_at").
		From(r.store.builder().Table(tableVerifications)).
		Where(entsql.EQ("expenditure_id", id)).
		Query()
	rows, err := query(ctx, ex, q, args)
	if err != nil {
		return nil, fmt.Errorf("query verification: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var (
		v         entity.AIVerification
		raw       []byte
		anomalies []byte
	)
	if err := rows.Scan(&raw, &v.Authenticity, &anomalies, &v.Verified, &v.Threshold, &v.VerifiedAt); err != nil {
		return nil, fmt.Errorf("scan verification: %w", err)
	}
	if len(raw) > 0 {
		v.Raw = json.RawMessage(raw)
	}
	if err := json.Unmarshal(anomalies, &v.Anomalies); err != nil {
		return nil, fmt.Errorf("decode anomalies: %w", err)
	}
	v.Anomalies = nonNil(v.Anomalies)
	v.VerifiedAt = v.VerifiedAt.UTC()
	return &v, nil
}

func (r *expenditureRepository) loadVotes(ctx context.Context, ex dialect.ExecQuerier, id uuid.UUID) ([]entity.BeneficiaryVote, error) {
	q, args := r.store.builder().
		Select("beneficiary_id", "approved", "feedback", "cast_at", "voted_at").
		From(r.store.builder().Table(tableVotes)).
		Where(entsql.EQ("expenditure_id", id)).
		OrderBy("cast_at", "beneficiary_id").
		Query()
	rows, err := query(ctx, ex, q, args)
	if err != nil {
		return nil, fmt.Errorf("query votes: %w", err)
	}
	defer rows.Close()

	var out []entity.BeneficiaryVote
	for rows.Next() {
		var (
			v        entity.BeneficiaryVote
			feedback sql.NullString
		)
		if err := rows.Scan(&v.BeneficiaryID, &v.Approved, &feedback, &v.CastAt, &v.VotedAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		if feedback.Valid {
			f := feedback.String
			v.Feedback = &f
		}
		v.CastAt = v.CastAt.UTC()
		v.VotedAt = v.VotedAt.UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

func expenditureValues(exp *entity.Expenditure) []any {
	var receipt, releasedBy, releasedAt any
	if exp.Release != nil {
		receipt, releasedBy, releasedAt = exp.Release.ReceiptID, exp.Release.ReleasedBy, exp.Release.ReleasedAt
	}
	return []any{
		exp.ID, exp.ProjectID, nullString(exp.VendorID), exp.Amount.String(), exp.Description, exp.Category,
		string(exp.Status), exp.CreatedBy, exp.Quorum.Required, exp.Quorum.Current, exp.Quorum.Achieved,
		nullTime(exp.QuorumReachedAt), receipt, releasedBy, releasedAt, exp.CreatedAt, exp.UpdatedAt, exp.Version,
	}
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func emptyAsNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
