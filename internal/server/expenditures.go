package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/core"
	"github.com/joseph-ayodele/triplelock/internal/entity"
	"github.com/joseph-ayodele/triplelock/internal/export"
	"github.com/joseph-ayodele/triplelock/internal/projects"
	"github.com/joseph-ayodele/triplelock/internal/proof"
	"github.com/joseph-ayodele/triplelock/internal/repository"
	"github.com/joseph-ayodele/triplelock/internal/utils"
)

// ExpenditureServer adapts the engine and its supporting services to the
// gRPC surface. It holds no state of its own.
type ExpenditureServer struct {
	engine   *core.Engine
	projects *projects.Service
	exporter *export.Service
	logger   *slog.Logger
}

var _ ExpenditureServiceServer = (*ExpenditureServer)(nil)

func NewExpenditureServer(engine *core.Engine, projects *projects.Service, exporter *export.Service, logger *slog.Logger) *ExpenditureServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpenditureServer{engine: engine, projects: projects, exporter: exporter, logger: logger}
}

func actorFrom(ctx context.Context) entity.Actor {
	actor, _ := common.ActorFromContext(ctx)
	return actor
}

// fail logs and maps an error onto a gRPC status.
func (s *ExpenditureServer) fail(ctx context.Context, op string, err error) error {
	attrs := []any{"op", op, "req_id", common.RequestIDFromContext(ctx), "error", err}
	if errors.Is(err, common.ErrInternal) || !isDomainError(err) {
		s.logger.Error("server.call.failed", attrs...)
	} else {
		s.logger.Warn("server.call.rejected", attrs...)
	}
	return common.GRPCStatus(err)
}

func isDomainError(err error) bool {
	for _, k := range []error{
		common.ErrNotFound, common.ErrValidation, common.ErrUnauthorized,
		common.ErrInvalidState, common.ErrTransientDependency, common.ErrConflict,
	} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

func (s *ExpenditureServer) expenditureReply(ctx context.Context, op string, exp *entity.Expenditure, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	out, err := utils.ToStruct(map[string]any{"expenditure": utils.ExpenditureMap(exp)})
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}
	return out, nil
}

func idArg(req *structpb.Struct) (uuid.UUID, error) {
	id, err := utils.UUID(req, "expenditure_id")
	if err != nil {
		return uuid.Nil, common.InvalidArgumentError(err.Error())
	}
	return id, nil
}

func (s *ExpenditureServer) CreateExpenditure(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	projectID, err := utils.UUID(req, "project_id")
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	amount, err := utils.Decimal(req, "amount")
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	exp, err := s.engine.CreateExpenditure(ctx, actorFrom(ctx), core.CreateExpenditureInput{
		ProjectID:   projectID,
		VendorID:    utils.String(req, "vendor_id"),
		Amount:      amount,
		Description: utils.String(req, "description"),
		Category:    utils.String(req, "category"),
	})
	return s.expenditureReply(ctx, "CreateExpenditure", exp, err)
}

func (s *ExpenditureServer) AssignVendor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idArg(req)
	if err != nil {
		return nil, err
	}
	exp, err := s.engine.AssignVendor(ctx, actorFrom(ctx), id, utils.String(req, "vendor_id"))
	return s.expenditureReply(ctx, "AssignVendor", exp, err)
}

// SubmitVendorProof expects images, location{latitude, longitude} and an
// optional description.
func (s *ExpenditureServer) SubmitVendorProof(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idArg(req)
	if err != nil {
		return nil, err
	}
	loc := utils.Object(req, "location")
	if loc == nil {
		return nil, common.InvalidArgumentError("location is required")
	}
	sub := proof.Submission{
		Images: utils.Strings(req, "images"),
		Location: entity.Location{
			Latitude:  utils.Number(loc, "latitude"),
			Longitude: utils.Number(loc, "longitude"),
		},
		Description: utils.String(req, "description"),
	}
	exp, err := s.engine.SubmitVendorProof(ctx, actorFrom(ctx), id, sub)
	return s.expenditureReply(ctx, "SubmitVendorProof", exp, err)
}

func (s *ExpenditureServer) RetryVerification(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idArg(req)
	if err != nil {
		return nil, err
	}
	exp, err := s.engine.RetryVerification(ctx, actorFrom(ctx), id)
	return s.expenditureReply(ctx, "RetryVerification", exp, err)
}

func (s *ExpenditureServer) SubmitBeneficiaryVote(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idArg(req)
	if err != nil {
		return nil, err
	}
	approved, ok := utils.Bool(req, "approved")
	if !ok {
		return nil, common.InvalidArgumentError("approved must be a boolean")
	}
	exp, err := s.engine.SubmitBeneficiaryVote(ctx, actorFrom(ctx), id, approved, utils.OptionalString(req, "feedback"))
	return s.expenditureReply(ctx, "SubmitBeneficiaryVote", exp, err)
}

func (s *ExpenditureServer) ReleaseFunds(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idArg(req)
	if err != nil {
		return nil, err
	}
	exp, err := s.engine.ReleaseFunds(ctx, actorFrom(ctx), id)
	return s.expenditureReply(ctx, "ReleaseFunds", exp, err)
}

func (s *ExpenditureServer) RejectExpenditure(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idArg(req)
	if err != nil {
		return nil, err
	}
	exp, err := s.engine.RejectExpenditure(ctx, actorFrom(ctx), id, utils.String(req, "reason"))
	return s.expenditureReply(ctx, "RejectExpenditure", exp, err)
}

func (s *ExpenditureServer) GetExpenditure(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idArg(req)
	if err != nil {
		return nil, err
	}
	exp, err := s.engine.GetExpenditure(ctx, actorFrom(ctx), id)
	return s.expenditureReply(ctx, "GetExpenditure", exp, err)
}

// ListExpenditures accepts optional project_id, status, vendor_id and limit.
func (s *ExpenditureServer) ListExpenditures(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	projectID, err := utils.OptionalUUID(req, "project_id")
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	list, err := s.engine.ListExpenditures(ctx, actorFrom(ctx), repository.ExpenditureFilter{
		ProjectID: projectID,
		Status:    constants.ExpenditureStatus(utils.String(req, "status")),
		VendorID:  utils.String(req, "vendor_id"),
		Limit:     int(utils.Number(req, "limit")),
	})
	if err != nil {
		return nil, s.fail(ctx, "ListExpenditures", err)
	}
	out := make([]any, 0, len(list))
	for _, exp := range list {
		out = append(out, utils.ExpenditureMap(exp))
	}
	resp, err := utils.ToStruct(map[string]any{"expenditures": out})
	if err != nil {
		return nil, s.fail(ctx, "ListExpenditures", err)
	}
	return resp, nil
}

func (s *ExpenditureServer) ListEvents(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := idArg(req)
	if err != nil {
		return nil, err
	}
	evs, err := s.engine.ListEvents(ctx, actorFrom(ctx), id)
	if err != nil {
		return nil, s.fail(ctx, "ListEvents", err)
	}
	out := make([]any, 0, len(evs))
	for _, ev := range evs {
		m, err := utils.EventMap(ev)
		if err != nil {
			return nil, s.fail(ctx, "ListEvents", err)
		}
		out = append(out, m)
	}
	resp, err := utils.ToStruct(map[string]any{"events": out})
	if err != nil {
		return nil, s.fail(ctx, "ListEvents", err)
	}
	return resp, nil
}
