package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/scahts-api/internal/dto"
	"github.com/noah-isme/scahts-api/internal/models"
	appErrors "github.com/noah-isme/scahts-api/pkg/errors"
)

type pagedLeaveLister struct {
	total   int
	filters []models.LeaveFilter
}

func (p *pagedLeaveLister) List(ctx context.Context, filter models.LeaveFilter) ([]models.LeaveRequestDetail, error) {
	p.filters = append(p.filters, filter)
	var out []models.LeaveRequestDetail
	for i := filter.Offset; i < p.total && len(out) < filter.Limit; i++ {
		from, _ := models.ParseDate("2024-03-01")
		out = append(out, models.LeaveRequestDetail{
			LeaveRequest: models.LeaveRequest{
				ID:           fmt.Sprintf("leave-%d", i),
				DepartmentID: filter.DepartmentID,
				FromDate:     from,
				ToDate:       from,
				Status:       models.LeaveStatusRejectedByTeacher,
				TeacherAction: &models.ReviewAction{
					ActorID:  "teacher-1",
					Remarks:  "no documents",
					Decision: models.LeaveDecisionReject,
				},
				CreatedAt: time.Date(2024, 2, 27, 9, 0, 0, 0, time.UTC),
			},
			StudentName: "Asha Rao",
			RollNumber:  "CS-01",
			SubjectCode: "CS201",
			SubjectName: "Data Structures",
		})
	}
	return out, nil
}

func newTestExportService(total int) (*ExportService, *pagedLeaveLister) {
	lister := &pagedLeaveLister{total: total}
	svc := NewExportService(lister, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 12, 30, 0, 0, time.UTC) }
	return svc, lister
}

func TestExportServiceLeaveRegisterCSV(t *testing.T) {
	svc, lister := newTestExportService(2)

	file, err := svc.LeaveRegister(context.Background(), hodActor, dto.LeaveExportQuery{Format: "CSV"})
	require.NoError(t, err)
	assert.Equal(t, "leave-register-20240305-123000.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.Equal(t, 2, file.Rows)
	assert.Equal(t, "dept-1", lister.filters[0].DepartmentID)

	records, err := csv.NewReader(bytes.NewReader(file.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, leaveRegisterHeaders, records[0])
	assert.Equal(t, "leave-0", records[1][0])
	assert.Equal(t, "CS201 Data Structures", records[1][3])
	assert.Equal(t, "no documents", records[1][8])
	assert.Equal(t, "", records[1][9])
}

func TestExportServiceLeaveRegisterPages(t *testing.T) {
	svc, lister := newTestExportService(exportPageSize + 3)

	file, err := svc.LeaveRegister(context.Background(), adminActor, dto.LeaveExportQuery{Format: "csv", DepartmentID: "dept-7"})
	require.NoError(t, err)
	assert.Equal(t, exportPageSize+3, file.Rows)
	require.Len(t, lister.filters, 2)
	assert.Equal(t, exportPageSize, lister.filters[1].Offset)
	assert.Equal(t, "dept-7", lister.filters[1].DepartmentID)
}

func TestExportServiceLeaveRegisterPDF(t *testing.T) {
	svc, _ := newTestExportService(1)

	file, err := svc.LeaveRegister(context.Background(), adminActor, dto.LeaveExportQuery{Format: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF")))
}

func TestExportServiceLeaveRegisterGuards(t *testing.T) {
	svc, lister := newTestExportService(1)

	_, err := svc.LeaveRegister(context.Background(), hodActor, dto.LeaveExportQuery{DepartmentID: "dept-2"})
	assertAppError(t, err, appErrors.ErrForbidden)

	_, err = svc.LeaveRegister(context.Background(), teacherActor, dto.LeaveExportQuery{})
	assertAppError(t, err, appErrors.ErrForbidden)

	_, err = svc.LeaveRegister(context.Background(), adminActor, dto.LeaveExportQuery{Format: "xlsx"})
	assertAppError(t, err, appErrors.ErrValidation)

	_, err = svc.LeaveRegister(context.Background(), adminActor, dto.LeaveExportQuery{Status: []models.LeaveStatus{"LOST"}})
	assertAppError(t, err, appErrors.ErrValidation)
	assert.Empty(t, lister.filters)
}
