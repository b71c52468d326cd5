package projects

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
	"github.com/joseph-ayodele/triplelock/internal/repository"
)

// Service handles the project registry that expenditures are filed under.
type Service struct {
	projectRepo repository.ProjectRepository
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a new project service.
func NewService(projectRepo repository.ProjectRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		projectRepo: projectRepo,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		logger:      logger,
	}
}

// CreateProjectRequest represents project creation parameters. NGOID is
// only honoured for admins; an NGO always owns the projects it creates.
type CreateProjectRequest struct {
	Name  string
	NGOID string
}

// CreateProject registers a new project.
func (s *Service) CreateProject(ctx context.Context, actor entity.Actor, req CreateProjectRequest) (*entity.Project, error) {
	if actor.ID == "" {
		return nil, common.NewUnauthorizedError("an authenticated actor is required")
	}
	name := strings.TrimSpace(req.Name)
	if err := common.NewValidator().
		Field("name", name, common.Required, common.MaxLength(200)).
		Err(); err != nil {
		return nil, err
	}
	if !actor.Role.CanAdminister() {
		return nil, common.NewUnauthorizedError("only an NGO or admin may create projects")
	}

	owner := actor.ID
	if ngoID := strings.TrimSpace(req.NGOID); ngoID != "" && actor.Role == constants.RoleAdmin {
		owner = ngoID
	}

	p := &entity.Project{
		ID:        uuid.New(),
		Name:      name,
		NGOID:     owner,
		CreatedAt: s.now(),
	}
	if err := s.projectRepo.CreateProject(ctx, p); err != nil {
		return nil, common.WrapError(err, "create project")
	}

	s.logger.Info("project created", "project_id", p.ID, "name", p.Name, "ngo_id", p.NGOID, "actor_id", actor.ID)
	return p, nil
}

func (s *Service) GetProject(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	return s.projectRepo.GetByID(ctx, id)
}

// ListProjects returns all projects.
func (s *Service) ListProjects(ctx context.Context) ([]*entity.Project, error) {
	plist, err := s.projectRepo.ListProjects(ctx)
	if err != nil {
		// DB error already logged in repository layer
		return nil, common.WrapError(err, "list projects")
	}
	s.logger.Debug("projects listed", "count", len(plist))
	return plist, nil
}

// Exists lets the engine resolve project ids.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.projectRepo.Exists(ctx, id)
}
