package server

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/projects"
	"github.com/joseph-ayodele/triplelock/internal/utils"
)

// CreateProject creates a new project.
func (s *ExpenditureServer) CreateProject(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := s.projects.CreateProject(ctx, actorFrom(ctx), projects.CreateProjectRequest{
		Name:  utils.String(req, "name"),
		NGOID: utils.String(req, "ngo_id"),
	})
	if err != nil {
		return nil, s.fail(ctx, "CreateProject", err)
	}
	return utils.ToStruct(map[string]any{"project": utils.ProjectMap(p)})
}

// ListProjects lists all the projects.
func (s *ExpenditureServer) ListProjects(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if actorFrom(ctx).ID == "" {
		return nil, s.fail(ctx, "ListProjects", common.NewUnauthorizedError("an authenticated actor is required"))
	}
	plist, err := s.projects.ListProjects(ctx)
	if err != nil {
		return nil, s.fail(ctx, "ListProjects", err)
	}
	out := make([]any, 0, len(plist))
	for _, p := range plist {
		out = append(out, utils.ProjectMap(p))
	}
	return utils.ToStruct(map[string]any{"projects": out})
}
