package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/entity"
	"github.com/joseph-ayodele/triplelock/internal/repository"
)

const (
	ledgerSheet  = "Ledger"
	summarySheet = "Summary"
)

// ExpenditureLister is the read side the ledger needs.
type ExpenditureLister interface {
	List(ctx context.Context, filter repository.ExpenditureFilter) ([]*entity.Expenditure, error)
}

// ProjectLister resolves project names for the ledger rows.
type ProjectLister interface {
	ListProjects(ctx context.Context) ([]*entity.Project, error)
}

// Service produces the public ledger as XLSX bytes.
type Service struct {
	expenditures ExpenditureLister
	projects     ProjectLister
	logger       *slog.Logger
}

func NewService(expenditures ExpenditureLister, projects ProjectLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{expenditures: expenditures, projects: projects, logger: logger}
}

var ledgerHeaders = []string{
	"Expenditure ID",
	"Project",
	"Category",
	"Description",
	"Vendor",
	"Amount",
	"Status",
	"Authenticity",
	"Approvals",
	"Required",
	"Receipt",
	"Released At",
	"Created At",
}

// ExportLedgerXLSX returns one row per expenditure, optionally limited to
// one project, plus a per-status summary sheet.
func (s *Service) ExportLedgerXLSX(ctx context.Context, projectID *uuid.UUID) ([]byte, error) {
	start := time.Now()

	exps, err := s.expenditures.List(ctx, repository.ExpenditureFilter{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("query expenditures: %w", err)
	}
	plist, err := s.projects.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	names := make(map[uuid.UUID]string, len(plist))
	for _, p := range plist {
		names[p.ID] = p.Name
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	// new workbooks start with "Sheet1"
	if err := f.SetSheetName(f.GetSheetName(0), ledgerSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	idx, _ := f.GetSheetIndex(ledgerSheet)
	f.SetActiveSheet(idx)

	for i, h := range ledgerHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ledgerSheet, cell, h)
	}

	type totals struct {
		count  int
		amount decimal.Decimal
	}
	byStatus := make(map[constants.ExpenditureStatus]*totals)

	row := 2
	for _, e := range exps {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(ledgerSheet, cell, v)
		}
		vendor := ""
		if e.VendorID != nil {
			vendor = *e.VendorID
		}
		write(1, e.ID.String())
		write(2, names[e.ProjectID])
		write(3, e.Category)
		write(4, truncate(e.Description, 140))
		write(5, vendor)
		write(6, e.Amount.StringFixed(2))
		write(7, string(e.Status))
		if e.AIVerification != nil {
			write(8, e.AIVerification.Authenticity)
		}
		write(9, e.Quorum.Current)
		write(10, e.Quorum.Required)
		if e.Release != nil {
			write(11, e.Release.ReceiptID)
			write(12, e.Release.ReleasedAt.UTC().Format(time.RFC3339))
		}
		write(13, e.CreatedAt.UTC().Format(time.RFC3339))

		t := byStatus[e.Status]
		if t == nil {
			t = &totals{}
			byStatus[e.Status] = t
		}
		t.count++
		t.amount = t.amount.Add(e.Amount)
		row++
	}

	_ = f.SetColWidth(ledgerSheet, "A", "A", 38) // id
	_ = f.SetColWidth(ledgerSheet, "B", "C", 22)
	_ = f.SetColWidth(ledgerSheet, "D", "D", 48) // description
	_ = f.SetColWidth(ledgerSheet, "E", "E", 18)
	_ = f.SetColWidth(ledgerSheet, "F", "G", 16)
	_ = f.SetColWidth(ledgerSheet, "K", "M", 24)

	_ = f.SetCellValue(summarySheet, "A1", "Status")
	_ = f.SetCellValue(summarySheet, "B1", "Count")
	_ = f.SetCellValue(summarySheet, "C1", "Amount")
	srow := 2
	for _, st := range constants.Statuses() {
		t := byStatus[st]
		if t == nil {
			continue
		}
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", srow), string(st))
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", srow), t.count)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", srow), t.amount.StringFixed(2))
		srow++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	pid := ""
	if projectID != nil {
		pid = projectID.String()
	}
	s.logger.Info("export.xlsx.ok",
		"project_id", pid,
		"rows", len(exps),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
