package repository

import (
	"context"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
)

type ProjectRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Project, error)
	CreateProject(ctx context.Context, project *entity.Project) error
	ListProjects(ctx context.Context) ([]*entity.Project, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type projectRepository struct {
	store  *Store
	logger *slog.Logger
}

func NewProjectRepository(store *Store, logger *slog.Logger) ProjectRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &projectRepository{
		store:  store,
		logger: logger,
	}
}

func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	q, args := r.store.builder().Select("id", "name", "ngo_id", "created_at").
		From(r.store.builder().Table(tableProjects)).
		Where(entsql.EQ("id", id)).
		Query()
	list, err := r.scan(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to get project", "project_id", id, "error", err)
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.NewNotFoundError(fmt.Sprintf("project %s not found", id))
	}
	return list[0], nil
}

func (r *projectRepository) CreateProject(ctx context.Context, p *entity.Project) error {
	q, args := r.store.builder().Insert(tableProjects).
		Columns("id", "name", "ngo_id", "created_at").
		Values(p.ID, p.Name, p.NGOID, p.CreatedAt).
		Query()
	if _, err := exec(ctx, r.store.drv, q, args); err != nil {
		r.logger.Error("failed to create project", "name", p.Name, "ngo_id", p.NGOID, "error", err)
		return err
	}
	return nil
}

func (r *projectRepository) ListProjects(ctx context.Context) ([]*entity.Project, error) {
	q, args := r.store.builder().Select("id", "name", "ngo_id", "created_at").
		From(r.store.builder().Table(tableProjects)).
		OrderBy("created_at", "id").
		Query()
	list, err := r.scan(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list projects", "error", err)
		return nil, err
	}
	return list, nil
}

func (r *projectRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	q, args := r.store.builder().Select("id").
		From(r.store.builder().Table(tableProjects)).
		Where(entsql.EQ("id", id)).
		Limit(1).
		Query()
	rows, err := query(ctx, r.store.drv, q, args)
	if err != nil {
		r.logger.Error("failed to check project existence", "project_id", id, "error", err)
		return false, err
	}
	defer rows.Close()
	exists := rows.Next()
	return exists, rows.Err()
}

func (r *projectRepository) scan(ctx context.Context, q string, args []any) ([]*entity.Project, error) {
	rows, err := query(ctx, r.store.drv, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Project
	for rows.Next() {
		var p entity.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.NGOID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.CreatedAt = p.CreatedAt.UTC()
		out = append(out, &p)
	}
	return out, rows.Err()
}
