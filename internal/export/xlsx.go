package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/scheduler"
	"github.com/xuri/excelize/v2"
)

const (
	gridSheet   = "合并视图"
	legendSheet = "图例"
)

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// slot 表格中的一行
type slot struct {
	start string
	end   string
}

// MergeViewXLSX 将合并视图的网格写成一个工作表：行为时间段，列为周一至周日
// 单元格背景取第一个条目的来源颜色
func MergeViewXLSX(view *scheduler.MergeView, title string) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(gridSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	// 设置列宽
	f.SetColWidth(gridSheet, "A", "A", 14)
	f.SetColWidth(gridSheet, "B", "H", 24)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	// 每个来源一个样式
	sourceStyles := make(map[int64]int, len(view.Sources))
	for _, src := range view.Sources {
		style, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{src.Color}, Pattern: 1},
			Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		})
		if err != nil {
			return nil, err
		}
		sourceStyles[src.TimetableID] = style
	}

	// 标题行
	f.SetCellValue(gridSheet, "A1", title)
	f.MergeCell(gridSheet, "A1", "H1")
	f.SetCellStyle(gridSheet, "A1", "A1", headerStyle)

	// 表头
	f.SetCellValue(gridSheet, "A2", "时间")
	for day := domain.Monday; day <= domain.Sunday; day++ {
		f.SetCellValue(gridSheet, cell(colName(scheduler.DayOffset(day)+1), 2), day.Label())
	}
	f.SetCellStyle(gridSheet, "A2", "H2", headerStyle)

	// 按时间段分行，网格本身已按星期、开始时间排序
	rows := make(map[slot]int)
	slots := make([]slot, 0)
	for _, c := range view.Grid {
		s := slot{start: c.StartTime, end: c.EndTime}
		if _, ok := rows[s]; !ok {
			rows[s] = 0
			slots = append(slots, s)
		}
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].start != slots[j].start {
			return clockLess(slots[i].start, slots[j].start)
		}
		return clockLess(slots[i].end, slots[j].end)
	})
	for i, s := range slots {
		rows[s] = i + 3
		f.SetCellValue(gridSheet, cell("A", i+3), fmt.Sprintf("%s-%s", s.start, s.end))
	}

	for _, c := range view.Grid {
		row := rows[slot{start: c.StartTime, end: c.EndTime}]
		col := colName(scheduler.DayOffset(c.DayOfWeek) + 1)

		lines := make([]string, 0, len(c.Entries))
		for _, e := range c.Entries {
			line := fmt.Sprintf("%s（%s）", e.StudentName, e.SourceTimetableName)
			if e.ScheduleDate != nil {
				line = fmt.Sprintf("%s %s", e.ScheduleDate.Format("01-02"), line)
			}
			lines = append(lines, line)
		}

		f.SetCellValue(gridSheet, cell(col, row), strings.Join(lines, "\n"))
		if len(c.Entries) > 0 {
			f.SetCellStyle(gridSheet, cell(col, row), cell(col, row), sourceStyles[c.Entries[0].SourceTimetableID])
		}
	}

	if err := writeLegend(f, view); err != nil {
		return nil, err
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}

	return buf, nil
}

func writeLegend(f *excelize.File, view *scheduler.MergeView) error {
	if _, err := f.NewSheet(legendSheet); err != nil {
		return err
	}

	f.SetCellValue(legendSheet, "A1", "来源")
	f.SetCellValue(legendSheet, "B1", "颜色")
	for i, src := range view.Sources {
		f.SetCellValue(legendSheet, cell("A", i+2), src.Name)
		f.SetCellValue(legendSheet, cell("B", i+2), src.Color)
	}

	f.SetCellValue(legendSheet, "D1", "学生")
	f.SetCellValue(legendSheet, "E1", "颜色")
	for i, sc := range view.StudentColors {
		f.SetCellValue(legendSheet, cell("D", i+2), sc.StudentName)
		f.SetCellValue(legendSheet, cell("E", i+2), sc.Color)
	}

	return nil
}

func clockLess(a, b string) bool {
	x, errA := scheduler.ParseClock(a)
	y, errB := scheduler.ParseClock(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return x < y
}
