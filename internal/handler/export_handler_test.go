package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/scahts-api/internal/dto"
	"github.com/noah-isme/scahts-api/internal/models"
	"github.com/noah-isme/scahts-api/internal/service"
	appErrors "github.com/noah-isme/scahts-api/pkg/errors"
)

type fakeExportSrv struct {
	query dto.LeaveExportQuery
	err   error
}

func (f *fakeExportSrv) LeaveRegister(_ context.Context, actor models.Actor, query dto.LeaveExportQuery) (*service.ExportFile, error) {
	f.query = query
	if f.err != nil {
		return nil, f.err
	}
	return &service.ExportFile{Filename: "leave-register.csv", ContentType: "text/csv; charset=utf-8", Body: []byte("Request ID\n"), Rows: 0}, nil
}

func TestExportHandlerStreamsAttachment(t *testing.T) {
	srv := &fakeExportSrv{}
	h := NewExportHandler(srv)
	c, rec := newLeaveContext(http.MethodGet, "/admin/leave-requests/export?format=csv&departmentId=dept-1&status=APPROVED", nil,
		&models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD, DepartmentID: "dept-1"})

	h.LeaveRegister(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="leave-register.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "dept-1", srv.query.DepartmentID)
	assert.Equal(t, []models.LeaveStatus{models.LeaveStatusApproved}, srv.query.Status)
}

func TestExportHandlerForbidden(t *testing.T) {
	h := NewExportHandler(&fakeExportSrv{err: appErrors.Clone(appErrors.ErrForbidden, "HODs may only export their own department")})
	c, rec := newLeaveContext(http.MethodGet, "/admin/leave-requests/export?departmentId=dept-2", nil,
		&models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD, DepartmentID: "dept-1"})

	h.LeaveRegister(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
