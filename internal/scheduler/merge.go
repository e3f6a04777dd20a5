package scheduler

import (
	"sort"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
)

// Palette 合并视图使用的两组固定颜色
type Palette struct {
	Sources  []string `yaml:"sources" json:"sources"`
	Students []string `yaml:"students" json:"students"`
}

func DefaultPalette() Palette {
	return Palette{
		Sources: []string{
			"#4472C4", "#ED7D31", "#70AD47", "#FFC000",
			"#5B9BD5", "#A5A5A5", "#9E480E", "#264478",
		},
		Students: []string{
			"#FDE2E4", "#E2ECE9", "#CDDAFD", "#FFF1E6",
			"#DFE7FD", "#FAD2E1", "#BEE1E6", "#F0EFEB",
			"#E9EDC9", "#FEC89A", "#D8E2DC", "#C5DEDD",
		},
	}
}

func pick(colors []string, index int) string {
	if len(colors) == 0 {
		return ""
	}
	return colors[index%len(colors)]
}

// MergeRequest 合并视图的输入
// TimetableIDs 决定来源顺序；Timetables/Entries 是从存储层取回的快照
type MergeRequest struct {
	TimetableIDs []int64
	Timetables   []domain.Timetable
	Entries      map[int64][]domain.ScheduleEntry
	Today        domain.Date
	WeekIndex    *int
	Palette      Palette
}

type MergeSource struct {
	TimetableID int64  `json:"timetableID"`
	Name        string `json:"name"`
	Color       string `json:"color"`
}

type StudentColor struct {
	StudentName string `json:"studentName"`
	Color       string `json:"color"`
}

// MergedEntry 带来源标记的条目
type MergedEntry struct {
	domain.ScheduleEntry
	SourceTimetableID   int64  `json:"sourceTimetableID"`
	SourceTimetableName string `json:"sourceTimetableName"`
	SourceColor         string `json:"sourceColor"`
	StudentColor        string `json:"studentColor"`
}

// GridCell 网格中的一个格子：同一星期、同一时间段的所有条目
type GridCell struct {
	DayOfWeek domain.DayOfWeek `json:"dayOfWeek"`
	StartTime string           `json:"startTime"`
	EndTime   string           `json:"endTime"`
	Entries   []MergedEntry    `json:"entries"`
}

type MergeView struct {
	Type          domain.TimetableType `json:"type"`
	Sources       []MergeSource        `json:"sources"`
	StudentColors []StudentColor       `json:"studentColors"`
	StartDate     *domain.Date         `json:"startDate,omitempty"`
	EndDate       *domain.Date         `json:"endDate,omitempty"`
	Weeks         []WeekWindow         `json:"weeks,omitempty"`
	SelectedWeek  *int                 `json:"selectedWeek,omitempty"`
	Entries       []MergedEntry        `json:"entries"`
	Grid          []GridCell           `json:"grid"`
}

// StudentColorOf 查找学生的颜色
func (v *MergeView) StudentColorOf(name string) string {
	for _, sc := range v.StudentColors {
		if sc.StudentName == name {
			return sc.Color
		}
	}
	return ""
}

// Merge 将多个同类型时间表合并为一个带来源标记的视图
func Merge(req MergeRequest) (*MergeView, error) {
	if len(req.TimetableIDs) == 0 {
		return nil, ErrEmptyMergeSet
	}

	byID := make(map[int64]domain.Timetable, len(req.Timetables))
	for _, tt := range req.Timetables {
		byID[tt.ID] = tt
	}

	sources := make([]domain.Timetable, 0, len(req.TimetableIDs))
	for _, id := range req.TimetableIDs {
		tt, ok := byID[id]
		if !ok {
			return nil, ErrSourceNotFound
		}
		sources = append(sources, tt)
	}

	kind := sources[0].Type
	for _, tt := range sources[1:] {
		if tt.Type != kind {
			return nil, ErrTypeMismatch
		}
	}

	view := &MergeView{
		Type:          kind,
		Sources:       make([]MergeSource, 0, len(sources)),
		StudentColors: make([]StudentColor, 0),
		Entries:       make([]MergedEntry, 0),
		Grid:          make([]GridCell, 0),
	}

	// 来源颜色只取决于输入顺序
	for i, tt := range sources {
		view.Sources = append(view.Sources, MergeSource{
			TimetableID: tt.ID,
			Name:        tt.Name,
			Color:       pick(req.Palette.Sources, i),
		})
	}

	// 学生颜色按所有条目中首次出现的顺序分配，与当前选中的周无关
	studentColors := make(map[string]string)
	for _, tt := range sources {
		for _, e := range req.Entries[tt.ID] {
			if _, seen := studentColors[e.StudentName]; seen {
				continue
			}
			color := pick(req.Palette.Students, len(view.StudentColors))
			studentColors[e.StudentName] = color
			view.StudentColors = append(view.StudentColors, StudentColor{StudentName: e.StudentName, Color: color})
		}
	}

	var selected *WeekWindow
	if kind == domain.TimetableTypeDateRange {
		window, err := selectWeek(view, sources, req)
		if err != nil {
			return nil, err
		}
		selected = window
	}

	for i, tt := range sources {
		for _, e := range req.Entries[tt.ID] {
			switch kind {
			case domain.TimetableTypeWeekly:
				if !e.IsWeekly() || !e.DayOfWeek.Valid() {
					return nil, ErrDiscriminantMismatch
				}
			case domain.TimetableTypeDateRange:
				if !e.IsDated() {
					return nil, ErrDiscriminantMismatch
				}
				if selected == nil || !selected.Contains(*e.ScheduleDate) {
					continue
				}
			}

			view.Entries = append(view.Entries, MergedEntry{
				ScheduleEntry:       e,
				SourceTimetableID:   tt.ID,
				SourceTimetableName: tt.Name,
				SourceColor:         view.Sources[i].Color,
				StudentColor:        studentColors[e.StudentName],
			})
		}
	}

	grid, err := buildGrid(view.Entries)
	if err != nil {
		return nil, err
	}
	view.Grid = grid

	return view, nil
}

// selectWeek 计算并集日期范围，枚举周并确定当前显示的周
func selectWeek(view *MergeView, sources []domain.Timetable, req MergeRequest) (*WeekWindow, error) {
	var start, end domain.Date
	for i, tt := range sources {
		if tt.StartDate == nil || tt.EndDate == nil {
			return nil, ErrMissingDateRange
		}
		if i == 0 || tt.StartDate.Before(start) {
			start = *tt.StartDate
		}
		if i == 0 || tt.EndDate.After(end) {
			end = *tt.EndDate
		}
	}

	view.StartDate = &start
	view.EndDate = &end
	view.Weeks = WeeksCovering(start, end)
	if len(view.Weeks) == 0 {
		return nil, nil
	}

	index := 0
	if req.WeekIndex != nil {
		if *req.WeekIndex < 0 || *req.WeekIndex >= len(view.Weeks) {
			return nil, ErrWeekOutOfRange
		}
		index = *req.WeekIndex
	} else if !req.Today.Before(start) && !req.Today.After(end) {
		if i := WeekIndexOf(view.Weeks, req.Today); i >= 0 {
			index = i
		}
	}

	view.SelectedWeek = &index
	return &view.Weeks[index], nil
}

// cellKey 网格分组键，按解析后的时间段分组，"09:00" 与 "09:00:00" 落在同一格
type cellKey struct {
	day  domain.DayOfWeek
	span interval
}

func buildGrid(entries []MergedEntry) ([]GridCell, error) {
	cells := make(map[cellKey]*GridCell)
	order := make([]cellKey, 0)

	for _, e := range entries {
		day := EntryDay(&e.ScheduleEntry)
		span, err := intervalOf(&e.ScheduleEntry)
		if err != nil {
			return nil, err
		}

		key := cellKey{day: day, span: span}
		cell, ok := cells[key]
		if !ok {
			cell = &GridCell{DayOfWeek: day, StartTime: FormatClock(span.start), EndTime: FormatClock(span.end)}
			cells[key] = cell
			order = append(order, key)
		}
		cell.Entries = append(cell.Entries, e)
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.day != b.day {
			return a.day < b.day
		}
		if a.span.start != b.span.start {
			return a.span.start < b.span.start
		}
		return a.span.end < b.span.end
	})

	grid := make([]GridCell, 0, len(order))
	for _, key := range order {
		grid = append(grid, *cells[key])
	}

	return grid, nil
}

// EntryDay 返回条目所在的星期：每周条目直接取值，日期条目按日期换算
func EntryDay(e *domain.ScheduleEntry) domain.DayOfWeek {
	if e.DayOfWeek != nil {
		return *e.DayOfWeek
	}
	if e.ScheduleDate != nil {
		return DayOfWeekOfDate(*e.ScheduleDate)
	}
	return 0
}
