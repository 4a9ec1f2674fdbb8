package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Makarand-Tighare/project-api-sub000/internal/dto"
	"github.com/Makarand-Tighare/project-api-sub000/internal/service"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/jwt"
	"github.com/Makarand-Tighare/project-api-sub000/pkg/response"
)

const (
	deptCSE = "7f1c1c6e-3b1a-4d8e-9a55-0c2b9d7e1a01"
	deptECE = "7f1c1c6e-3b1a-4d8e-9a55-0c2b9d7e1a02"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock ParticipantService ──

type mockParticipantService struct {
	registerResult *dto.ParticipantResponse
	registerErr    error
	registerCalls  int
	getResult      *dto.ParticipantResponse
	getErr         error
	deptOf         map[string]string
}

func (m *mockParticipantService) Register(_ context.Context, _ *dto.RegisterParticipantRequest) (*dto.ParticipantResponse, error) {
	m.registerCalls++
	return m.registerResult, m.registerErr
}
func (m *mockParticipantService) Get(_ context.Context, _ string) (*dto.ParticipantResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockParticipantService) List(_ context.Context, _ *dto.ParticipantListRequest) ([]dto.ParticipantResponse, int64, error) {
	return nil, 0, nil
}
func (m *mockParticipantService) Approve(_ context.Context, _, _ string) (*dto.ParticipantResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockParticipantService) Reject(_ context.Context, _, _ string) (*dto.ParticipantResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockParticipantService) Deactivate(_ context.Context, _, _ string) (*dto.ParticipantResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockParticipantService) Reactivate(_ context.Context, _, _ string) (*dto.ParticipantResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockParticipantService) UpdateProfile(_ context.Context, _ string, _ *dto.UpdateProfileRequest, _ string) (*dto.ParticipantResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockParticipantService) Delete(_ context.Context, _ string) error {
	return m.getErr
}
func (m *mockParticipantService) DepartmentOf(_ context.Context, regNo string) (string, error) {
	dept, ok := m.deptOf[regNo]
	if !ok {
		return "", service.ErrParticipantNotFound
	}
	return dept, nil
}

// ── Mock MatchingService ──

type mockMatchingService struct {
	result    *dto.MatchResult
	err       error
	lastScope *service.Scope
}

func (m *mockMatchingService) Run(_ context.Context, scope service.Scope, _ string) (*dto.MatchResult, error) {
	m.lastScope = &scope
	return m.result, m.err
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportLeaderboard(_ context.Context, _ service.Scope) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}
func (m *mockExportService) ExportRelationships(_ context.Context, _ service.Scope) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setupGin() (*gin.Engine, *gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, r := gin.CreateTestContext(w)
	return r, c, w
}

// withAuth 模拟 JWTAuth 中间件写入的上下文
func withAuth(regNo, role, deptID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(CtxRegistrationNo, regNo)
		c.Set(CtxRole, role)
		c.Set(CtxDepartmentID, deptID)
		c.Next()
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func doJSON(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func validRegistration(regNo string) dto.RegisterParticipantRequest {
	return dto.RegisterParticipantRequest{
		RegistrationNo: regNo,
		Name:           "Asha Rao",
		Email:          "asha@example.edu",
		Semester:       5,
		ProfileRequest: dto.ProfileRequest{
			MentoringPreference: "mentor",
			TechStack:           "Go, React",
			AreasOfInterest:     "AI, Cloud",
		},
	}
}

// ═══════════════════════════════════════════════════════════
// ParticipantHandler Tests
// ═══════════════════════════════════════════════════════════

func TestParticipantHandler_Register(t *testing.T) {
	tests := []struct {
		name       string
		caller     string
		role       string
		regNo      string
		svcErr     error
		wantStatus int
		wantCode   int
		wantCalls  int
	}{
		{"本人报名", "R2024001", jwt.RoleStudent, "R2024001", nil, http.StatusCreated, 0, 1},
		{"学生代他人报名", "R2024001", jwt.RoleStudent, "R2024002", nil, http.StatusForbidden, 10003, 0},
		{"管理员代为报名", "admin", jwt.RoleAdmin, "R2024002", nil, http.StatusCreated, 0, 1},
		{"重复报名", "R2024001", jwt.RoleStudent, "R2024001", service.ErrParticipantExists, http.StatusConflict, 11002, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockParticipantService{
				registerResult: &dto.ParticipantResponse{RegistrationNo: tt.regNo},
				registerErr:    tt.svcErr,
			}
			h := NewParticipantHandler(mock)

			r := gin.New()
			r.POST("/participants", withAuth(tt.caller, tt.role, ""), h.Register)
			w := doJSON(r, "POST", "/participants", jsonBody(validRegistration(tt.regNo)))

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
			if mock.registerCalls != tt.wantCalls {
				t.Errorf("expected %d service calls, got %d", tt.wantCalls, mock.registerCalls)
			}
		})
	}
}

func TestParticipantHandler_Register_InvalidTechStack(t *testing.T) {
	h := NewParticipantHandler(&mockParticipantService{})

	r := gin.New()
	r.POST("/participants", withAuth("R2024001", jwt.RoleStudent, ""), h.Register)

	body := validRegistration("R2024001")
	body.TechStack = " , ,"
	w := doJSON(r, "POST", "/participants", jsonBody(body))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 10001 {
		t.Errorf("expected code 10001, got %d", resp.Code)
	}
	if !strings.Contains(resp.Details, "TechStack") {
		t.Errorf("expected details to name TechStack, got %q", resp.Details)
	}
}

func TestParticipantHandler_Get_Unauthenticated(t *testing.T) {
	h := NewParticipantHandler(&mockParticipantService{})

	r := gin.New()
	r.GET("/participants/me", h.GetMe)
	w := doJSON(r, "GET", "/participants/me", nil)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestParticipantHandler_GetParticipant_DepartmentBoundary(t *testing.T) {
	mock := &mockParticipantService{
		getResult: &dto.ParticipantResponse{RegistrationNo: "R2024009"},
		deptOf:    map[string]string{"R2024009": deptCSE, "R2024010": deptECE},
	}
	h := NewParticipantHandler(mock)

	tests := []struct {
		name       string
		caller     string
		role       string
		dept       string
		target     string
		wantStatus int
	}{
		{"本院系管理员", "hod-cse", jwt.RoleDepartmentAdmin, deptCSE, "R2024009", http.StatusOK},
		{"其他院系管理员", "hod-cse", jwt.RoleDepartmentAdmin, deptCSE, "R2024010", http.StatusForbidden},
		{"参与者不存在", "hod-cse", jwt.RoleDepartmentAdmin, deptCSE, "R2024099", http.StatusNotFound},
		{"学生查看他人", "R2024001", jwt.RoleStudent, deptCSE, "R2024009", http.StatusForbidden},
		{"学生查看本人", "R2024009", jwt.RoleStudent, deptCSE, "R2024009", http.StatusOK},
		{"管理员", "admin", jwt.RoleAdmin, "", "R2024010", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/participants/:reg_no", withAuth(tt.caller, tt.role, tt.dept), h.GetParticipant)
			w := doJSON(r, "GET", "/participants/"+tt.target, nil)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// MatchingHandler Tests
// ═══════════════════════════════════════════════════════════

func newMatchingRouter(m *mockMatchingService, regNo, role, dept string) *gin.Engine {
	h := NewMatchingHandler(m, nil, &mockParticipantService{})
	r := gin.New()
	r.POST("/matching/run", withAuth(regNo, role, dept), h.RunMatching)
	return r
}

func TestMatchingHandler_Run_PendingApprovals(t *testing.T) {
	mock := &mockMatchingService{err: &service.PendingApprovalError{
		Count:           2,
		RegistrationNos: []string{"R2024003", "R2024007"},
	}}
	r := newMatchingRouter(mock, "admin", jwt.RoleAdmin, "")

	w := doJSON(r, "POST", "/matching/run", jsonBody(dto.ScopeRequest{}))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 12001 {
		t.Errorf("expected code 12001, got %d", resp.Code)
	}
	if resp.Details != "R2024003,R2024007" {
		t.Errorf("expected pending registration numbers in details, got %q", resp.Details)
	}
}

func TestMatchingHandler_Run_ScopeBusy(t *testing.T) {
	mock := &mockMatchingService{err: service.ErrScopeBusy}
	r := newMatchingRouter(mock, "admin", jwt.RoleAdmin, "")

	w := doJSON(r, "POST", "/matching/run", jsonBody(dto.ScopeRequest{DepartmentID: deptCSE}))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 19001 {
		t.Errorf("expected code 19001, got %d", resp.Code)
	}
	if w.Header().Get("Retry-After") != "5" {
		t.Errorf("expected Retry-After 5, got %q", w.Header().Get("Retry-After"))
	}
}

func TestMatchingHandler_Run_ScopeResolution(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		ownDept    string
		body       io.Reader
		wantStatus int
		wantScope  string
	}{
		{"管理员空请求体为全局", jwt.RoleAdmin, "", nil, http.StatusOK, ""},
		{"管理员指定院系", jwt.RoleAdmin, "", jsonBody(dto.ScopeRequest{DepartmentID: deptECE}), http.StatusOK, deptECE},
		{"院系管理员默认本院系", jwt.RoleDepartmentAdmin, deptCSE, jsonBody(dto.ScopeRequest{}), http.StatusOK, deptCSE},
		{"院系管理员越权", jwt.RoleDepartmentAdmin, deptCSE, jsonBody(dto.ScopeRequest{DepartmentID: deptECE}), http.StatusForbidden, ""},
		{"学生无权运行", jwt.RoleStudent, deptCSE, jsonBody(dto.ScopeRequest{}), http.StatusForbidden, ""},
		{"院系 ID 非法", jwt.RoleAdmin, "", strings.NewReader(`{"department_id":"cse"}`), http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockMatchingService{result: &dto.MatchResult{}}
			r := newMatchingRouter(mock, "caller", tt.role, tt.ownDept)

			body := tt.body
			if body == nil {
				body = http.NoBody
			}
			w := doJSON(r, "POST", "/matching/run", body)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if mock.lastScope != nil {
					t.Error("service should not be called when the request is rejected")
				}
				return
			}
			if mock.lastScope == nil || mock.lastScope.DepartmentID != tt.wantScope {
				t.Errorf("expected scope %q, got %+v", tt.wantScope, mock.lastScope)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportLeaderboard(t *testing.T) {
	mock := &mockExportService{
		buf:      bytes.NewBufferString("xlsx-bytes"),
		filename: "排行榜_全部.xlsx",
	}
	h := NewExportHandler(mock)

	r := gin.New()
	r.GET("/export/leaderboard", withAuth("admin", jwt.RoleAdmin, ""), h.ExportLeaderboard)
	w := doJSON(r, "GET", "/export/leaderboard", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, "filename*=UTF-8''") {
		t.Errorf("unexpected content disposition %q", cd)
	}
	if w.Body.String() != "xlsx-bytes" {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestExportHandler_ScopeBusy(t *testing.T) {
	h := NewExportHandler(&mockExportService{err: service.ErrScopeBusy})

	r := gin.New()
	r.GET("/export/relationships", withAuth("hod", jwt.RoleDepartmentAdmin, deptCSE), h.ExportRelationships)
	w := doJSON(r, "GET", "/export/relationships?department_id="+deptCSE, nil)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// Validator Tests
// ═══════════════════════════════════════════════════════════

func TestValidateCSVList(t *testing.T) {
	v := validator.New()
	if err := v.RegisterValidation("csvlist", validateCSVList); err != nil {
		t.Fatal(err)
	}

	type payload struct {
		List string `validate:"csvlist"`
	}

	tooMany := strings.TrimSuffix(strings.Repeat("x,", csvListMaxItems+1), ",")
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"单项", "Go", true},
		{"多项含空白", " Go , React ,", true},
		{"全为空", " , ,", false},
		{"空字符串", "", false},
		{"单项过长", strings.Repeat("a", csvListMaxItemLen+1), false},
		{"项数过多", tooMany, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(payload{List: tt.input})
			if (err == nil) != tt.valid {
				t.Errorf("input %q: expected valid=%v, got err=%v", tt.input, tt.valid, err)
			}
		})
	}
}

func TestContextHelpers_MissingIdentity(t *testing.T) {
	_, c, w := setupGin()
	c.Set(CtxRole, jwt.RoleStudent)
	if isManager(c) {
		t.Error("student should not be a manager")
	}
	if _, ok := MustGetRegistrationNo(c); ok {
		t.Error("expected missing registration_no to fail")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}
