package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alexfofanov/company-structure/config"
	"github.com/alexfofanov/company-structure/internal/api/middleware"
	"github.com/alexfofanov/company-structure/internal/dto"
	"github.com/alexfofanov/company-structure/internal/service"
	pkgerrors "github.com/alexfofanov/company-structure/pkg/errors"
	"github.com/alexfofanov/company-structure/pkg/jwt"
	"github.com/alexfofanov/company-structure/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	loginResult *dto.TokenResponse
	loginErr    error
	logoutErr   error
	loggedOut   *jwt.Claims
	meResult    *dto.UserDetailResponse
	meErr       error
}

func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest) (*dto.TokenResponse, error) {
	return m.loginResult, m.loginErr
}
func (m *mockAuthService) Logout(_ context.Context, claims *jwt.Claims) error {
	m.loggedOut = claims
	return m.logoutErr
}
func (m *mockAuthService) Me(_ context.Context, _ string) (*dto.UserDetailResponse, error) {
	return m.meResult, m.meErr
}
func (m *mockAuthService) CreateUser(_ context.Context, _ *dto.CreateUserRequest) (*dto.UserResponse, error) {
	return nil, nil
}

// ── Mock DepartmentService ──

// mockDepartmentService 只有 nodes 中的部门存在
type mockDepartmentService struct {
	nodes     map[int64]*dto.NodeDataResponse
	moveErr   error
	createErr error
	created   *dto.CreateDepartmentRequest
	caller    string
}

func (m *mockDepartmentService) GetNodeData(_ context.Context, id int64) (*dto.NodeDataResponse, error) {
	if d, ok := m.nodes[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: 部门 %d", pkgerrors.ErrNotFound, id)
}
func (m *mockDepartmentService) GetRootNodes(_ context.Context) ([]dto.NodeSummary, error) {
	return []dto.NodeSummary{{ID: 1, Name: "Root", HasChildren: true}}, nil
}
func (m *mockDepartmentService) List(_ context.Context, _ *dto.DepartmentListRequest) ([]dto.DepartmentListItem, int64, error) {
	return []dto.DepartmentListItem{}, 0, nil
}
func (m *mockDepartmentService) GetByID(_ context.Context, id int64) (*dto.DepartmentDetailResponse, error) {
	return nil, fmt.Errorf("%w: 部门 %d", pkgerrors.ErrNotFound, id)
}
func (m *mockDepartmentService) Children(_ context.Context, _ int64) ([]dto.DepartmentResponse, error) {
	return nil, nil
}
func (m *mockDepartmentService) Ancestors(_ context.Context, _ int64) ([]dto.DepartmentResponse, error) {
	return nil, nil
}
func (m *mockDepartmentService) Descendants(_ context.Context, _ int64) ([]dto.DepartmentResponse, error) {
	return nil, nil
}
func (m *mockDepartmentService) Create(_ context.Context, req *dto.CreateDepartmentRequest, callerID string) (*dto.DepartmentResponse, error) {
	m.created, m.caller = req, callerID
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &dto.DepartmentResponse{ID: 10, Name: req.Name, ParentID: req.ParentID}, nil
}
func (m *mockDepartmentService) Rename(_ context.Context, id int64, req *dto.RenameDepartmentRequest, _ string) (*dto.DepartmentResponse, error) {
	return &dto.DepartmentResponse{ID: id, Name: req.Name}, nil
}
func (m *mockDepartmentService) Move(_ context.Context, id int64, _ *dto.MoveDepartmentRequest, _ string) (*dto.DepartmentResponse, error) {
	if m.moveErr != nil {
		return nil, m.moveErr
	}
	return &dto.DepartmentResponse{ID: id}, nil
}
func (m *mockDepartmentService) Delete(_ context.Context, id int64, _ string) (*dto.DeleteDepartmentResponse, error) {
	return &dto.DeleteDepartmentResponse{ID: id, Removed: 1}, nil
}

// ── Mock EmployeeService ──

type mockEmployeeService struct {
	bulkResult *dto.BulkCreateEmployeesResponse
	err        error
	listReq    *dto.EmployeeListRequest
}

func (m *mockEmployeeService) Create(_ context.Context, req *dto.CreateEmployeeRequest, _ string) (*dto.EmployeeResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.EmployeeResponse{ID: 1, FullName: req.FullName, Salary: req.Salary.StringFixed(2)}, nil
}
func (m *mockEmployeeService) BulkCreate(_ context.Context, _ *dto.BulkCreateEmployeesRequest, _ string) (*dto.BulkCreateEmployeesResponse, error) {
	return m.bulkResult, m.err
}
func (m *mockEmployeeService) List(_ context.Context, req *dto.EmployeeListRequest) ([]dto.EmployeeResponse, int64, error) {
	m.listReq = req
	return []dto.EmployeeResponse{}, 0, m.err
}
func (m *mockEmployeeService) GetByID(_ context.Context, id int64) (*dto.EmployeeResponse, error) {
	return nil, fmt.Errorf("%w: 员工 %d", pkgerrors.ErrNotFound, id)
}
func (m *mockEmployeeService) Delete(_ context.Context, _ int64, _ string) error {
	return m.err
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportDepartment(_ context.Context, _ int64) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

var testJWT = jwt.NewManager(&config.AuthConfig{
	JWTSecret:      "handler-test-secret-at-least-32-bytes",
	AccessTokenTTL: 15 * time.Minute,
})

func setAuth(c *gin.Context) {
	c.Set("user_id", "test-user-id")
	c.Set("role", "admin")
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

func bearer(t *testing.T, role string) string {
	t.Helper()
	token, err := testJWT.GenerateAccessToken("user-1", role)
	if err != nil {
		t.Fatalf("签发 Token 失败: %v", err)
	}
	return "Bearer " + token
}

// protectedRouter 挂载真实的 JWT 与角色中间件
func protectedRouter(dept *mockDepartmentService) *gin.Engine {
	h := NewDepartmentHandler(dept)
	r := gin.New()
	g := r.Group("")
	g.Use(middleware.JWTAuth(testJWT, nil, zap.NewNop()))
	g.GET("/department-data", h.GetNodeData)
	g.GET("/department-data/:id", h.GetNodeData)
	g.POST("/departments", middleware.RoleAuth("admin"), h.CreateDepartment)
	return r
}

func do(r http.Handler, method, path, auth string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	r.ServeHTTP(w, req)
	return w
}

// ═══════════════════════════════════════════════════════════
// GetNodeData 场景
// ═══════════════════════════════════════════════════════════

func TestDepartmentHandler_GetNodeData_Scenario(t *testing.T) {
	dept := &mockDepartmentService{nodes: map[int64]*dto.NodeDataResponse{
		1: {
			Children: []dto.NodeSummary{{ID: 2, Name: "Child", HasChildren: false}},
			Employees: []dto.EmployeeBrief{{
				ID: 1, FullName: "Worker", Position: "Dev", Salary: "1000.00", HireDate: "2020-01-01",
			}},
		},
	}}
	r := protectedRouter(dept)
	auth := bearer(t, "viewer")

	// 已认证：200
	w := do(r, http.MethodGet, "/department-data/1", auth, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Data dto.NodeDataResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("响应解析失败: %v", err)
	}
	if len(body.Data.Children) != 1 || body.Data.Children[0].Name != "Child" {
		t.Errorf("children 错误: %+v", body.Data.Children)
	}
	if len(body.Data.Employees) != 1 || body.Data.Employees[0].Salary != "1000.00" {
		t.Errorf("employees 错误: %+v", body.Data.Employees)
	}

	// 查询参数形式
	if w := do(r, http.MethodGet, "/department-data?id=1", auth, nil); w.Code != http.StatusOK {
		t.Errorf("expected 200 for ?id=, got %d", w.Code)
	}

	// 未认证：403，无论部门是否存在
	for _, path := range []string{"/department-data/1", "/department-data/999"} {
		if w := do(r, http.MethodGet, path, "", nil); w.Code != http.StatusForbidden {
			t.Errorf("%s: expected 403, got %d", path, w.Code)
		}
	}
	if w := do(r, http.MethodGet, "/department-data/1", "Bearer garbage", nil); w.Code != http.StatusForbidden {
		t.Errorf("invalid token: expected 403, got %d", w.Code)
	}

	// 不存在：404
	w = do(r, http.MethodGet, "/department-data/999", auth, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 13001 {
		t.Errorf("expected code 13001, got %d", resp.Code)
	}
}

func TestDepartmentHandler_GetNodeData_BadID(t *testing.T) {
	r := protectedRouter(&mockDepartmentService{})
	auth := bearer(t, "viewer")

	for _, path := range []string{"/department-data", "/department-data?id=abc", "/department-data/-3"} {
		if w := do(r, http.MethodGet, path, auth, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

// ═══════════════════════════════════════════════════════════
// 结构变更
// ═══════════════════════════════════════════════════════════

func TestDepartmentHandler_Create_RequiresAdmin(t *testing.T) {
	dept := &mockDepartmentService{}
	r := protectedRouter(dept)
	body := dto.CreateDepartmentRequest{Name: "研发中心"}

	if w := do(r, http.MethodPost, "/departments", bearer(t, "viewer"), jsonBody(body)); w.Code != http.StatusForbidden {
		t.Errorf("viewer: expected 403, got %d", w.Code)
	}
	if dept.created != nil {
		t.Error("viewer 不应触达 Service")
	}

	w := do(r, http.MethodPost, "/departments", bearer(t, "admin"), jsonBody(body))
	if w.Code != http.StatusCreated {
		t.Fatalf("admin: expected 201, got %d", w.Code)
	}
	if dept.caller != "user-1" || dept.created.Name != "研发中心" {
		t.Errorf("Service 收到的参数错误: caller=%s req=%+v", dept.caller, dept.created)
	}
}

func TestDepartmentHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   int
	}{
		{fmt.Errorf("%w: x", pkgerrors.ErrConstraintViolation), http.StatusBadRequest, 13002},
		{pkgerrors.ErrInvalidMove, http.StatusBadRequest, 13003},
		{pkgerrors.ErrStorageConflict, http.StatusServiceUnavailable, 13004},
		{pkgerrors.ErrForbidden, http.StatusForbidden, 10003},
		{fmt.Errorf("boom"), http.StatusInternalServerError, 0},
	}
	for _, tc := range cases {
		h := NewDepartmentHandler(&mockDepartmentService{moveErr: tc.err})
		r := gin.New()
		r.PUT("/departments/:id/move", func(c *gin.Context) {
			setAuth(c)
			h.MoveDepartment(c)
		})

		w := do(r, http.MethodPut, "/departments/5/move", "", jsonBody(dto.MoveDepartmentRequest{}))
		if w.Code != tc.status {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.status, w.Code)
		}
		if tc.code != 0 {
			if resp := parseResponse(w); resp.Code != tc.code {
				t.Errorf("%v: expected code %d, got %d", tc.err, tc.code, resp.Code)
			}
		}
	}
}

// ═══════════════════════════════════════════════════════════
// AuthHandler
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Login(t *testing.T) {
	mock := &mockAuthService{loginResult: &dto.TokenResponse{AccessToken: "t", ExpiresIn: 900}}
	h := NewAuthHandler(mock)
	r := gin.New()
	r.POST("/auth/login", h.Login)

	w := do(r, http.MethodPost, "/auth/login", "", jsonBody(dto.LoginRequest{Username: "admin", Password: "pw"}))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	w = do(r, http.MethodPost, "/auth/login", "", bytes.NewReader([]byte("invalid json")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}

	mock.loginErr = service.ErrInvalidCredentials
	w = do(r, http.MethodPost, "/auth/login", "", jsonBody(dto.LoginRequest{Username: "admin", Password: "bad"}))
	if w.Code != http.StatusUnauthorized || parseResponse(w).Code != 11001 {
		t.Errorf("expected 401/11001, got %d/%d", w.Code, parseResponse(w).Code)
	}
}

func TestAuthHandler_Logout_PassesClaims(t *testing.T) {
	mock := &mockAuthService{}
	h := NewAuthHandler(mock)
	r := gin.New()
	r.POST("/auth/logout", middleware.JWTAuth(testJWT, nil, zap.NewNop()), h.Logout)

	w := do(r, http.MethodPost, "/auth/logout", bearer(t, "viewer"), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.loggedOut == nil || mock.loggedOut.ID == "" {
		t.Error("Logout 应收到带 jti 的声明")
	}
}

// ═══════════════════════════════════════════════════════════
// EmployeeHandler / ExportHandler
// ═══════════════════════════════════════════════════════════

func TestEmployeeHandler_Create_Validation(t *testing.T) {
	h := NewEmployeeHandler(&mockEmployeeService{})
	r := gin.New()
	r.POST("/employees", func(c *gin.Context) {
		setAuth(c)
		h.CreateEmployee(c)
	})

	valid := map[string]interface{}{
		"full_name": "张三", "position": "工程师", "hire_date": "2020-01-02",
		"salary": "1200.50", "department_id": 1,
	}
	if w := do(r, http.MethodPost, "/employees", "", jsonBody(valid)); w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", w.Code)
	}

	missingSalary := map[string]interface{}{
		"full_name": "张三", "position": "工程师", "hire_date": "2020-01-02", "department_id": 1,
	}
	if w := do(r, http.MethodPost, "/employees", "", jsonBody(missingSalary)); w.Code != http.StatusBadRequest {
		t.Errorf("missing salary: expected 400, got %d", w.Code)
	}

	badDate := map[string]interface{}{
		"full_name": "张三", "position": "工程师", "hire_date": "02.01.2020",
		"salary": "1", "department_id": 1,
	}
	if w := do(r, http.MethodPost, "/employees", "", jsonBody(badDate)); w.Code != http.StatusBadRequest {
		t.Errorf("bad date: expected 400, got %d", w.Code)
	}
}

func TestEmployeeHandler_List_BindsQuery(t *testing.T) {
	mock := &mockEmployeeService{}
	h := NewEmployeeHandler(mock)
	r := gin.New()
	r.GET("/employees", h.ListEmployees)

	w := do(r, http.MethodGet, "/employees?department_id=3&include_descendants=true&page=2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.listReq.DepartmentID != 3 || !mock.listReq.IncludeDescendants || mock.listReq.GetPageSize() != dto.DefaultPageSize {
		t.Errorf("查询参数绑定错误: %+v", mock.listReq)
	}

	if w := do(r, http.MethodGet, "/employees", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing department_id: expected 400, got %d", w.Code)
	}
}

func TestEmployeeHandler_List_BindsFilters(t *testing.T) {
	mock := &mockEmployeeService{}
	h := NewEmployeeHandler(mock)
	r := gin.New()
	r.GET("/employees", h.ListEmployees)

	w := do(r, http.MethodGet, "/employees?department_id=3&keyword=%E5%BC%A0&hired_from=2020-01-01&hired_to=2021-12-31", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.listReq.Keyword != "张" || mock.listReq.HiredFrom != "2020-01-01" || mock.listReq.HiredTo != "2021-12-31" {
		t.Errorf("筛选参数绑定错误: %+v", mock.listReq)
	}

	if w := do(r, http.MethodGet, "/employees?department_id=3&hired_from=01.01.2020", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad hired_from: expected 400, got %d", w.Code)
	}
}

func TestEmployeeHandler_BulkCreate_RowDetails(t *testing.T) {
	mock := &mockEmployeeService{
		err: &service.RowError{Row: 2, Err: fmt.Errorf("%w: 薪资不能为负数", pkgerrors.ErrConstraintViolation)},
	}
	h := NewEmployeeHandler(mock)
	r := gin.New()
	r.POST("/employees/bulk", func(c *gin.Context) {
		setAuth(c)
		h.BulkCreateEmployees(c)
	})

	row := map[string]interface{}{
		"full_name": "张三", "position": "工程师", "hire_date": "2020-01-02",
		"salary": "1", "department_id": 1,
	}
	w := do(r, http.MethodPost, "/employees/bulk", "", jsonBody(map[string]interface{}{
		"employees": []interface{}{row, row},
	}))
	resp := parseResponse(w)
	if w.Code != http.StatusBadRequest || resp.Code != 14002 || resp.Details != "row=2" {
		t.Errorf("expected 400/14002/row=2, got %d/%d/%q", w.Code, resp.Code, resp.Details)
	}
}

func TestEmployeeHandler_GetEmployee_NotFound(t *testing.T) {
	h := NewEmployeeHandler(&mockEmployeeService{})
	r := gin.New()
	r.GET("/employees/:id", h.GetEmployee)

	w := do(r, http.MethodGet, "/employees/8", "", nil)
	if w.Code != http.StatusNotFound || parseResponse(w).Code != 14001 {
		t.Errorf("expected 404/14001, got %d/%d", w.Code, parseResponse(w).Code)
	}
}

func TestExportHandler_ExportDepartment(t *testing.T) {
	mock := &mockExportService{buf: bytes.NewBufferString("xlsx"), filename: "员工名单_总部.xlsx"}
	h := NewExportHandler(mock)
	r := gin.New()
	r.GET("/departments/:id/export", h.ExportDepartment)

	w := do(r, http.MethodGet, "/departments/1/export", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("Content-Type 错误: %s", ct)
	}
	if w.Body.String() != "xlsx" {
		t.Errorf("响应体错误: %q", w.Body.String())
	}

	mock.err = fmt.Errorf("%w: 部门 1", pkgerrors.ErrNotFound)
	if w := do(r, http.MethodGet, "/departments/1/export", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// HealthHandler
// ═══════════════════════════════════════════════════════════

func TestHealthHandler(t *testing.T) {
	healthy := NewHealthHandler(map[string]HealthCheck{
		"db": func(context.Context) error { return nil },
	})
	r := gin.New()
	r.GET("/health", healthy.Health)
	if w := do(r, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	broken := NewHealthHandler(map[string]HealthCheck{
		"db":    func(context.Context) error { return nil },
		"redis": func(context.Context) error { return fmt.Errorf("connection refused") },
	})
	r = gin.New()
	r.GET("/health", broken.Health)
	if w := do(r, http.MethodGet, "/health", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}
