package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/scahts-api/internal/models"
	"github.com/noah-isme/scahts-api/internal/service"
	appErrors "github.com/noah-isme/scahts-api/pkg/errors"
)

type fakeTokens map[string]*models.JWTClaims

func (f fakeTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := f[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type fakeAuthSrv struct{}

func (fakeAuthSrv) Login(context.Context, models.LoginRequest) (*models.LoginResponse, error) {
	return &models.LoginResponse{AccessToken: "student"}, nil
}

func (fakeAuthSrv) Me(_ context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID}, nil
}

type recordingAudit struct {
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeLeaveSrv, *recordingAudit) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	leaveSrv := &fakeLeaveSrv{}
	audit := &recordingAudit{}
	r := gin.New()
	RegisterRoutes(r, Handlers{
		Auth:         NewAuthHandler(fakeAuthSrv{}),
		Leave:        NewLeaveHandler(leaveSrv),
		Notification: NewNotificationHandler(&fakeNotificationSrv{}),
		Export:       NewExportHandler(&fakeExportSrv{}),
		Metrics:      NewMetricsHandler(nil, nil),
	}, RouteDeps{
		Tokens: fakeTokens{
			"student": {UserID: "user-stu-1", Role: models.RoleStudent},
			"teacher": {UserID: "teacher-1", Role: models.RoleTeacher},
			"hod":     {UserID: "hod-1", Role: models.RoleHOD, DepartmentID: "dept-1"},
			"admin":   {UserID: "admin-1", Role: models.RoleAdmin},
		},
		Audit:  audit,
		Logger: zap.NewNop(),
	})
	return r, leaveSrv, audit
}

func serve(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouterRequiresToken(t *testing.T) {
	r, _, _ := newTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/leave/my-requests", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/v1/leave/my-requests", "forged", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/api/v1/auth/login", "", `{"email":"a@b.c","password":"x"}`).Code)
}

func TestRouterEnforcesRolePolicy(t *testing.T) {
	r, _, _ := newTestRouter(t)
	review := `{"action":"approve"}`

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPut, "/api/v1/teacher/leave-requests/leave-1/action", "student", review).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPut, "/api/v1/teacher/leave-requests/leave-1/action", "hod", review).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPut, "/api/v1/teacher/leave-requests/leave-1/action", "teacher", review).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPut, "/api/v1/teacher/leave-requests/leave-1/action", "admin", review).Code)

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPut, "/api/v1/hod/leave-requests/leave-1/action", "teacher", review).Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPut, "/api/v1/hod/leave-requests/leave-1/action", "hod", review).Code)

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/api/v1/leave/apply", "teacher", `{}`).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodPost, "/api/v1/admin/notifications/bulk", "hod", `{}`).Code)
}

func TestRouterSeparatesStaticAndParamLeaveRoutes(t *testing.T) {
	r, srv, _ := newTestRouter(t)

	rec := serve(r, http.MethodGet, "/api/v1/leave/my-requests", "student", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, decodeEnvelope(t, rec).Pagination["total_count"])

	rec = serve(r, http.MethodGet, "/api/v1/leave/leave-42", "teacher", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), "leave-42")

	rec = serve(r, http.MethodPut, "/api/v1/leave/leave-42/withdraw", "student", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-stu-1", srv.lastActor.UserID)
}

func TestRouterAuditsExports(t *testing.T) {
	r, _, audit := newTestRouter(t)

	rec := serve(r, http.MethodGet, "/api/v1/admin/leave-requests/export?format=csv", "hod", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionLeaveExport, audit.logs[0].Action)
	require.NotNil(t, audit.logs[0].UserID)
	assert.Equal(t, "hod-1", *audit.logs[0].UserID)

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/v1/admin/leave-requests/export", "student", "").Code)
	assert.Len(t, audit.logs, 1)
}

func TestRouterMeUsesTokenSubject(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := serve(r, http.MethodGet, "/api/v1/auth/me", "hod", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), "hod-1")
}

type downPinger struct{}

func (downPinger) PingContext(context.Context) error { return errors.New("connection refused") }

func TestMetricsHandlerHealthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	r := gin.New()
	down := NewMetricsHandler(metrics, downPinger{})
	r.GET("/ready", down.Ready)
	r.GET("/metrics", down.Prometheus)

	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/ready", "", "").Code)

	rec := serve(r, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	bare := gin.New()
	bare.GET("/metrics", NewMetricsHandler(nil, nil).Prometheus)
	bare.GET("/ready", NewMetricsHandler(nil, nil).Ready)
	assert.Equal(t, http.StatusServiceUnavailable, serve(bare, http.MethodGet, "/metrics", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(bare, http.MethodGet, "/ready", "", "").Code)
}
