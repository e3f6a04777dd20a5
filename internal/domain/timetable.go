package domain

import "time"

type TimetableType string

const (
	TimetableTypeWeekly    TimetableType = "WEEKLY"
	TimetableTypeDateRange TimetableType = "DATE_RANGE"
)

func (t TimetableType) Valid() bool {
	return t == TimetableTypeWeekly || t == TimetableTypeDateRange
}

type Timetable struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	OwnerID    int64         `json:"ownerID"`
	Type       TimetableType `json:"type"`
	StartDate  *Date         `json:"startDate"` // 仅 DATE_RANGE 有值，闭区间
	EndDate    *Date         `json:"endDate"`
	IsActive   bool          `json:"isActive"`
	IsArchived bool          `json:"isArchived"`
	CreatedAt  time.Time     `json:"createdAt"`
	Version    int32         `json:"-"`
}
