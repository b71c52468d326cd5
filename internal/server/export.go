package server

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/utils"
)

// ExportLedger returns the public ledger workbook. project_id is optional.
// The xlsx bytes travel base64-encoded in the "xlsx" field.
func (s *ExpenditureServer) ExportLedger(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if actorFrom(ctx).ID == "" {
		return nil, s.fail(ctx, "ExportLedger", common.NewUnauthorizedError("an authenticated actor is required"))
	}
	projectID, err := utils.OptionalUUID(req, "project_id")
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}

	xlsx, err := s.exporter.ExportLedgerXLSX(ctx, projectID)
	if err != nil {
		return nil, s.fail(ctx, "ExportLedger", err)
	}

	name := fmt.Sprintf("ledger-%s.xlsx", time.Now().UTC().Format("20060102"))
	return utils.ToStruct(map[string]any{"filename": name, "xlsx": xlsx})
}
