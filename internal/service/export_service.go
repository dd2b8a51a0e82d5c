package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/alexfofanov/company-structure/internal/repository"
	"github.com/alexfofanov/company-structure/internal/tree"
)

// ErrExportGenerateFail 生成文件失败
var ErrExportGenerateFail = errors.New("生成 Excel 文件失败")

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
type ExportService interface {
	// ExportDepartment 导出部门及其所有下级部门的员工名单
	ExportDepartment(ctx context.Context, departmentID int64) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	query  *tree.Query
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, query *tree.Query, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, query: query, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportDepartment 导出子树员工为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "员工名单"
//   - 第 1 行：部门路径 + 累计人数
//   - 表头：部门 | 姓名 | 职位 | 入职日期 | 薪资
//   - 数据行按部门在树中的先序排列，末行为薪资合计

func (s *exportService) ExportDepartment(ctx context.Context, departmentID int64) (*bytes.Buffer, string, error) {
	// 1. 部门及祖先路径
	root, err := s.query.Node(ctx, departmentID)
	if err != nil {
		return nil, "", err
	}
	ancestors, err := s.query.Ancestors(ctx, departmentID)
	if err != nil {
		return nil, "", err
	}
	title := make([]string, 0, len(ancestors)+1)
	for _, a := range ancestors {
		title = append(title, a.Name)
	}
	title = append(title, root.Name)

	// 2. 子树部门，先序
	desc, err := s.query.Descendants(ctx, departmentID)
	if err != nil {
		return nil, "", err
	}
	nodes := append([]tree.Node{root}, desc...)

	// 3. 员工：按子树区间一次查出，再按部门分组
	emps, _, err := s.repo.Employee.Search(ctx, repository.EmployeeFilter{Department: root, IncludeDescendants: true}, 0, 0)
	if err != nil {
		s.logger.Error("查询员工失败", zap.Int64("department_id", departmentID), zap.Error(err))
		return nil, "", err
	}
	byDept := make(map[int64][]int, len(nodes))
	for i := range emps {
		byDept[emps[i].DepartmentID] = append(byDept[emps[i].DepartmentID], i)
	}

	// 4. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "员工名单"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 28)
	f.SetColWidth(sheetName, "B", "C", 24)
	f.SetColWidth(sheetName, "D", "D", 12)
	f.SetColWidth(sheetName, "E", "E", 16)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s（共 %d 人）", strings.Join(title, " / "), len(emps)))
	f.MergeCell(sheetName, "A1", "E1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	row := 2
	for i, h := range []string{"部门", "姓名", "职位", "入职日期", "薪资"} {
		f.SetCellValue(sheetName, cell(colName(i), row), h)
	}
	f.SetCellStyle(sheetName, cell("A", row), cell("E", row), headerStyle)

	total := decimal.Zero
	row = 3
	for _, n := range nodes {
		indent := strings.Repeat("  ", n.Level-root.Level)
		for _, i := range byDept[n.ID] {
			e := emps[i]
			f.SetCellValue(sheetName, cell("A", row), indent+n.Name)
			f.SetCellValue(sheetName, cell("B", row), e.FullName)
			f.SetCellValue(sheetName, cell("C", row), e.Position)
			f.SetCellValue(sheetName, cell("D", row), e.HireDate.Format(dateLayout))
			f.SetCellValue(sheetName, cell("E", row), FormatSalary(e.Salary))
			total = total.Add(e.Salary)
			row++
		}
	}
	f.SetCellValue(sheetName, cell("D", row), "合计")
	f.SetCellValue(sheetName, cell("E", row), FormatSalary(total))

	// 5. 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("员工名单_%s.xlsx", root.Name)
	return buf, filename, nil
}

// FormatSalary 千位以空格分组并保留两位小数，例如 1 234 567.50
func FormatSalary(v decimal.Decimal) string {
	s := v.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, frac = s[:dot], s[dot:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
