package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/alexfofanov/company-structure/pkg/errors"
)

func TestExportService_ExportDepartment_NotFound(t *testing.T) {
	env := setupTestServices(t, false)

	_, _, err := env.export.ExportDepartment(context.Background(), 7)
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Errorf("期望 ErrNotFound，实际: %v", err)
	}
}

func TestExportService_ExportDepartment_Success(t *testing.T) {
	env := setupTestServices(t, false)

	root := env.mustCreate(t, "总部", nil)
	rd := env.mustCreate(t, "研发中心", &root.ID)
	env.mustHire(t, root.ID, "张三", "1000")
	env.mustHire(t, rd.ID, "李四", "234.5")

	buf, filename, err := env.export.ExportDepartment(context.Background(), rd.ID)
	if err != nil {
		t.Fatalf("ExportDepartment 应成功: %v", err)
	}
	if filename != "员工名单_研发中心.xlsx" {
		t.Errorf("文件名错误: %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("读取导出文件失败: %v", err)
	}
	defer f.Close()

	title, _ := f.GetCellValue("员工名单", "A1")
	if title != "总部 / 研发中心（共 1 人）" {
		t.Errorf("标题错误: %s", title)
	}
	name, _ := f.GetCellValue("员工名单", "B3")
	if name != "李四" {
		t.Errorf("期望 B3=李四，实际 %s", name)
	}
	sum, _ := f.GetCellValue("员工名单", "E4")
	if sum != "234.50" {
		t.Errorf("期望合计 234.50，实际 %s", sum)
	}
}

func TestFormatSalary(t *testing.T) {
	cases := map[string]string{
		"0":          "0.00",
		"999.9":      "999.90",
		"1234.5":     "1 234.50",
		"1234567.25": "1 234 567.25",
		"-45000":     "-45 000.00",
	}
	for in, want := range cases {
		if got := FormatSalary(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatSalary(%s) = %q，期望 %q", in, got, want)
		}
	}
}
