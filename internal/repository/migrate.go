package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableProjects      = "projects"
	tableExpenditures  = "expenditures"
	tableVendorProofs  = "vendor_proofs"
	tableVerifications = "ai_verifications"
	tableVotes         = "beneficiary_votes"
	tableEvents        = "expenditure_events"
)

var textType = map[string]string{dialect.Postgres: "text"}

// Tables declares the schema in ent's migration model so the same
// definitions drive Postgres and SQLite.
func Tables() []*schema.Table {
	projectsColumns := []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "name", Type: field.TypeString, Size: 255},
		{Name: "ngo_id", Type: field.TypeString, Size: 128},
		{Name: "created_at", Type: field.TypeTime},
	}
	projects := &schema.Table{
		Name:       tableProjects,
		Columns:    projectsColumns,
		PrimaryKey: []*schema.Column{projectsColumns[0]},
	}

	expColumns := []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "project_id", Type: field.TypeUUID},
		{Name: "vendor_id", Type: field.TypeString, Size: 128, Nullable: true},
		{Name: "amount", Type: field.TypeString, Size: 64},
		{Name: "description", Type: field.TypeString, SchemaType: textType},
		{Name: "category", Type: field.TypeString, Size: 128},
		{Name: "status", Type: field.TypeString, Size: 32},
		{Name: "created_by", Type: field.TypeString, Size: 128},
		{Name: "required_quorum", Type: field.TypeInt},
		{Name: "approval_count", Type: field.TypeInt, Default: 0},
		{Name: "quorum_achieved", Type: field.TypeBool, Default: false},
		{Name: "quorum_reached_at", Type: field.TypeTime, Nullable: true},
		{Name: "release_receipt_id", Type: field.TypeString, Size: 255, Nullable: true},
		{Name: "released_by", Type: field.TypeString, Size: 128, Nullable: true},
		{Name: "released_at", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "version", Type: field.TypeInt, Default: 1},
	}
	expenditures := &schema.Table{
		Name:       tableExpenditures,
		Columns:    expColumns,
		PrimaryKey: []*schema.Column{expColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "expenditures_projects_expenditures",
				Columns:    []*schema.Column{expColumns[1]},
				RefColumns: []*schema.Column{projectsColumns[0]},
				RefTable:   projects,
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "expenditure_project_id", Columns: []*schema.Column{expColumns[1]}},
			{Name: "expenditure_status", Columns: []*schema.Column{expColumns[6]}},
			{Name: "expenditure_vendor_id", Columns: []*schema.Column{expColumns[2]}},
		},
	}

	proofColumns := []*schema.Column{
		{Name: "expenditure_id", Type: field.TypeUUID},
		{Name: "vendor_id", Type: field.TypeString, Size: 128},
		{Name: "images", Type: field.TypeJSON},
		{Name: "latitude", Type: field.TypeFloat64},
		{Name: "longitude", Type: field.TypeFloat64},
		{Name: "description", Type: field.TypeString, SchemaType: textType},
		{Name: "submitted_at", Type: field.TypeTime},
	}
	proofs := &schema.Table{
		Name:       tableVendorProofs,
		Columns:    proofColumns,
		PrimaryKey: []*schema.Column{proofColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "vendor_proofs_expenditures_vendor_proof",
				Columns:    []*schema.Column{proofColumns[0]},
				RefColumns: []*schema.Column{expColumns[0]},
				RefTable:   expenditures,
				OnDelete:   schema.Cascade,
			},
		},
	}

	verColumns := []*schema.Column{
		{Name: "expenditure_id", Type: field.TypeUUID},
		{Name: "raw", Type: field.TypeJSON, Nullable: true},
		{Name: "authenticity", Type: field.TypeFloat64},
		{Name: "anomalies", Type: field.TypeJSON},
		{Name: "verified", Type: field.TypeBool},
		{Name: "threshold", Type: field.TypeFloat64},
		{Name: "verified_at", Type: field.TypeTime},
	}
	verifications := &schema.Table{
		Name:       tableVerifications,
		Columns:    verColumns,
		PrimaryKey: []*schema.Column{verColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "ai_verifications_expenditures_ai_verification",
				Columns:    []*schema.Column{verColumns[0]},
				RefColumns: []*schema.Column{expColumns[0]},
				RefTable:   expenditures,
				OnDelete:   schema.Cascade,
			},
		},
	}

	voteColumns := []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "expenditure_id", Type: field.TypeUUID},
		{Name: "beneficiary_id", Type: field.TypeString, Size: 128},
		{Name: "approved", Type: field.TypeBool},
		{Name: "feedback", Type: field.TypeString, SchemaType: textType, Nullable: true},
		{Name: "cast_at", Type: field.TypeTime},
		{Name: "voted_at", Type: field.TypeTime},
	}
	votes := &schema.Table{
		Name:       tableVotes,
		Columns:    voteColumns,
		PrimaryKey: []*schema.Column{voteColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "beneficiary_votes_expenditures_votes",
				Columns:    []*schema.Column{voteColumns[1]},
				RefColumns: []*schema.Column{expColumns[0]},
				RefTable:   expenditures,
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "beneficiaryvote_expenditure_id_beneficiary_id", Unique: true, Columns: []*schema.Column{voteColumns[1], voteColumns[2]}},
		},
	}

	eventColumns := []*schema.Column{
		{Name: "seq", Type: field.TypeInt64, Increment: true},
		{Name: "id", Type: field.TypeUUID, Unique: true},
		{Name: "expenditure_id", Type: field.TypeUUID},
		{Name: "type", Type: field.TypeString, Size: 64},
		{Name: "actor_id", Type: field.TypeString, Size: 128, Nullable: true},
		{Name: "from_status", Type: field.TypeString, Size: 32, Nullable: true},
		{Name: "to_status", Type: field.TypeString, Size: 32},
		{Name: "payload", Type: field.TypeJSON, Nullable: true},
		{Name: "occurred_at", Type: field.TypeTime},
	}
	events := &schema.Table{
		Name:       tableEvents,
		Columns:    eventColumns,
		PrimaryKey: []*schema.Column{eventColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "expenditure_events_expenditures_events",
				Columns:    []*schema.Column{eventColumns[2]},
				RefColumns: []*schema.Column{expColumns[0]},
				RefTable:   expenditures,
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "expenditureevent_expenditure_id", Columns: []*schema.Column{eventColumns[2]}},
		},
	}

	return []*schema.Table{projects, expenditures, proofs, verifications, votes, events}
}

// Migrate creates or upgrades the schema.
func (s *Store) Migrate(ctx context.Context) error {
	s.logger.Info("running schema migration", "dialect", s.dialect)
	m, err := schema.NewMigrate(s.drv)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := m.Create(ctx, Tables()...); err != nil {
		s.logger.Error("schema migration failed", "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	s.logger.Info("schema migration complete")
	return nil
}
