package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportLeaderboard 导出范围内排行榜（读取已持久化的积分，不触发重新计算）
	ExportLeaderboard(ctx context.Context, scope Scope) (*bytes.Buffer, string, error)
	// ExportRelationships 导出范围内当前的导师-学员关系
	ExportRelationships(ctx context.Context, scope Scope) (*bytes.Buffer, string, error)
}

type exportService struct {
	leaderboard  LeaderboardService
	relationship RelationshipService
	logger       *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(leaderboard LeaderboardService, relationship RelationshipService, logger *zap.Logger) ExportService {
	return &exportService{leaderboard: leaderboard, relationship: relationship, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportLeaderboard
// ═══════════════════════════════════════════════════════════
//
// 表头: | 名次 | 学号 | 姓名 | 院系 | 总积分 | 徽章数 | 超级导师 |

func (s *exportService) ExportLeaderboard(ctx context.Context, scope Scope) (*bytes.Buffer, string, error) {
	entries, err := s.leaderboard.Leaderboard(ctx, scope, 0)
	if err != nil {
		return nil, "", err
	}

	headers := []string{"名次", "学号", "姓名", "院系", "总积分", "徽章数", "超级导师"}
	rows := make([][]interface{}, 0, len(entries))
	for _, e := range entries {
		super := "否"
		if e.IsSuperMentor {
			super = "是"
		}
		rows = append(rows, []interface{}{e.Rank, e.RegistrationNo, e.Name, e.Department, e.TotalScore, e.BadgesEarned, super})
	}

	buf, err := s.writeSheet("排行榜", scopeTitle("排行榜", scope), headers, []float64{8, 16, 16, 20, 10, 10, 10}, rows)
	if err != nil {
		return nil, "", err
	}
	return buf, exportFilename("leaderboard", scope), nil
}

// ═══════════════════════════════════════════════════════════
// ExportRelationships
// ═══════════════════════════════════════════════════════════
//
// 表头: | 导师学号 | 导师姓名 | 学员学号 | 学员姓名 | 学员院系 | 建立方式 | 建立时间 |

func (s *exportService) ExportRelationships(ctx context.Context, scope Scope) (*bytes.Buffer, string, error) {
	rels, err := s.relationship.List(ctx, scope)
	if err != nil {
		return nil, "", err
	}

	headers := []string{"导师学号", "导师姓名", "学员学号", "学员姓名", "学员院系", "建立方式", "建立时间"}
	rows := make([][]interface{}, 0, len(rels))
	for _, r := range rels {
		source := "自动匹配"
		if r.ManuallyCreated {
			source = "手动指定"
		}
		var mentorNo, mentorName, menteeNo, menteeName, dept string
		if r.Mentor != nil {
			mentorNo, mentorName = r.Mentor.RegistrationNo, r.Mentor.Name
		}
		if r.Mentee != nil {
			menteeNo, menteeName, dept = r.Mentee.RegistrationNo, r.Mentee.Name, r.Mentee.Department
		}
		rows = append(rows, []interface{}{mentorNo, mentorName, menteeNo, menteeName, dept, source, r.CreatedAt})
	}

	buf, err := s.writeSheet("导师关系", scopeTitle("导师-学员关系", scope), headers, []float64{16, 16, 16, 16, 20, 12, 24}, rows)
	if err != nil {
		return nil, "", err
	}
	return buf, exportFilename("relationships", scope), nil
}

// writeSheet 标题行 + 表头 + 数据行的单 Sheet 工作簿
func (s *exportService) writeSheet(sheetName, title string, headers []string, widths []float64, rows [][]interface{}) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		s.logger.Error("创建 Sheet 失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", title)
	f.MergeCell(sheetName, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(headers)-1), 2), headerStyle)

	// 数据行
	for r, values := range rows {
		for c, v := range values {
			f.SetCellValue(sheetName, cell(colName(c), r+3), v)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}
	return buf, nil
}

func scopeTitle(name string, scope Scope) string {
	if scope.IsGlobal() {
		return fmt.Sprintf("%s（全校）— %s", name, time.Now().Format("2006-01-02"))
	}
	return fmt.Sprintf("%s（院系 %s）— %s", name, scope.DepartmentID, time.Now().Format("2006-01-02"))
}

func exportFilename(kind string, scope Scope) string {
	label := "global"
	if !scope.IsGlobal() {
		label = scope.DepartmentID
	}
	return fmt.Sprintf("%s_%s_%s.xlsx", kind, label, time.Now().Format("20060102"))
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
