package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/attendance-admin-api/internal/models"
	appErrors "github.com/noah-isme/attendance-admin-api/pkg/errors"
	"github.com/noah-isme/attendance-admin-api/pkg/export"
)

// MissingCell fills matrix cells without an attendance row.
const MissingCell = "N/A"

const (
	rosterSheet   = "User_Profiles"
	rosterFile    = "users_report"
	matrixSheet   = "Attendance_Matrix"
	matrixFile    = "attendance_matrix_report"
	matrixUserCol = "User"
)

var rosterHeaders = []string{"Username", "Email", "Grade", "Section", "Account", "Phone Number"}

type exportRepository interface {
	RosterRows(ctx context.Context) ([]models.RosterRow, error)
	MatrixUsers(ctx context.Context) ([]models.MatrixUser, error)
	MatrixSessions(ctx context.Context) ([]models.AttendanceSession, error)
	MatrixCells(ctx context.Context) ([]models.MatrixCell, error)
}

type datasetRenderer interface {
	Render(format export.Format, data export.Dataset) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService builds read-only tabular datasets and renders them.
type ExportService struct {
	repo      exportRepository
	renderers datasetRenderer
	logger    *zap.Logger
}

// NewExportService constructs the export service. A nil renderer set uses the defaults.
func NewExportService(repo exportRepository, renderers datasetRenderer, logger *zap.Logger) *ExportService {
	if renderers == nil {
		renderers = export.DefaultRenderers()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{repo: repo, renderers: renderers, logger: logger}
}

// UserRoster returns one row per user ordered by username.
func (s *ExportService) UserRoster(ctx context.Context) (export.Dataset, error) {
	rows, err := s.repo.RosterRows(ctx)
	if err != nil {
		return export.Dataset{}, appErrors.Internal(err, "failed to load roster")
	}
	data := export.Dataset{Sheet: rosterSheet, Headers: rosterHeaders, Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		data.Rows = append(data.Rows, []string{r.Username, r.Email, r.Grade, r.Section, r.Account, r.PhoneNumber})
	}
	return data, nil
}

// AttendanceMatrix returns a user by session grid. Columns follow session creation
// order and cells without a stored status hold MissingCell.
func (s *ExportService) AttendanceMatrix(ctx context.Context) (export.Dataset, error) {
	users, err := s.repo.MatrixUsers(ctx)
	if err != nil {
		return export.Dataset{}, appErrors.Internal(err, "failed to load matrix users")
	}
	sessions, err := s.repo.MatrixSessions(ctx)
	if err != nil {
		return export.Dataset{}, appErrors.Internal(err, "failed to load matrix sessions")
	}
	cells, err := s.repo.MatrixCells(ctx)
	if err != nil {
		return export.Dataset{}, appErrors.Internal(err, "failed to load matrix cells")
	}

	statuses := make(map[[2]string]models.AttendanceStatus, len(cells))
	for _, c := range cells {
		statuses[[2]string{c.UserID, c.SessionID}] = c.Status
	}

	headers := make([]string, 0, len(sessions)+1)
	headers = append(headers, matrixUserCol)
	for _, session := range sessions {
		headers = append(headers, session.Title)
	}

	rows := make([][]string, 0, len(users))
	for _, u := range users {
		row := make([]string, 0, len(headers))
		row = append(row, u.Username)
		for _, session := range sessions {
			if status, ok := statuses[[2]string{u.UserID, session.ID}]; ok {
				row = append(row, string(status))
			} else {
				row = append(row, MissingCell)
			}
		}
		rows = append(rows, row)
	}

	return export.Dataset{Sheet: matrixSheet, Headers: headers, Rows: rows}, nil
}

// ExportKind selects a dataset.
type ExportKind string

const (
	ExportUserRoster       ExportKind = "users"
	ExportAttendanceMatrix ExportKind = "attendance-matrix"
)

// Export builds the requested dataset and renders it in format.
func (s *ExportService) Export(ctx context.Context, kind ExportKind, format export.Format) (*ExportFile, error) {
	var (
		data export.Dataset
		base string
		err  error
	)
	switch kind {
	case ExportUserRoster:
		data, err = s.UserRoster(ctx)
		base = rosterFile
	case ExportAttendanceMatrix:
		data, err = s.AttendanceMatrix(ctx)
		base = matrixFile
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown export %q", kind))
	}
	if err != nil {
		return nil, err
	}

	payload, err := s.renderers.Render(format, data)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}
	s.logger.Info("export rendered", zap.String("kind", string(kind)), zap.String("format", string(format)), zap.Int("rows", len(data.Rows)))
	return &ExportFile{
		Filename:    base + "." + string(format),
		ContentType: format.ContentType(),
		Payload:     payload,
	}, nil
}
