package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"reportcard/internal/grading"
	"reportcard/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoSummaries  = errors.New("没有可导出的学期汇总")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportSummaries 导出学期汇总为 Excel，year / term 为 nil 时不筛选
	ExportSummaries(ctx context.Context, year, term *int) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

var summaryHeaders = []string{"学生", "邮箱", "学期", "年份", "总分", "平均分", "等级", "计算时间"}

// ═══════════════════════════════════════════════════════════
// ExportSummaries — 导出学期汇总为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 单个 Sheet "学期汇总"
//   - 第 1 行标题，第 2 行表头，第 3 行起每条汇总一行
//   - 按 年份 → 学期 → 学生 排序

func (s *exportService) ExportSummaries(ctx context.Context, year, term *int) (*bytes.Buffer, string, error) {
	summaries, err := s.repo.Summary.ListAll(ctx, &repository.SummaryListFilters{Year: year, Term: term})
	if err != nil {
		s.logger.Error("查询学期汇总失败", zap.Error(err))
		return nil, "", err
	}
	if len(summaries) == 0 {
		return nil, "", ErrExportNoSummaries
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "学期汇总"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	// 列宽
	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "B", 28)
	f.SetColWidth(sheetName, "C", "G", 10)
	f.SetColWidth(sheetName, "H", "H", 22)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	title := "学期汇总"
	if year != nil {
		title = fmt.Sprintf("%d 年%s", *year, title)
	}
	f.SetCellValue(sheetName, "A1", title)
	f.MergeCell(sheetName, "A1", cell(colName(len(summaryHeaders)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range summaryHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(summaryHeaders)-1), 2), headerStyle)

	// 数据行
	row := 3
	for _, sm := range summaries {
		name, email := sm.StudentID, ""
		if sm.Student != nil {
			name, email = sm.Student.Name, sm.Student.Email
		}
		total, _ := sm.TotalScore.Round(grading.Scale).Float64()
		avg, _ := sm.AverageScore.Round(grading.Scale).Float64()

		values := []interface{}{
			name, email, sm.Term, sm.Year, total, avg, sm.Grade,
			sm.CalculatedDate.Format(time.DateTime),
		}
		for i, v := range values {
			f.SetCellValue(sheetName, cell(colName(i), row), v)
		}
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := "学期汇总.xlsx"
	if year != nil {
		filename = fmt.Sprintf("学期汇总_%d.xlsx", *year)
		if term != nil {
			filename = fmt.Sprintf("学期汇总_%d_T%d.xlsx", *year, *term)
		}
	}
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
