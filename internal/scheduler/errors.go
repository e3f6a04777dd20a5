package scheduler

// DomainError 带错误码的业务错误，调用方需要原样呈现给用户并中止操作
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

var (
	ErrTypeMismatch     = &DomainError{Code: "TYPE_MISMATCH", Message: "只能合并相同类型的时间表"}
	ErrEmptyMergeSet    = &DomainError{Code: "EMPTY_MERGE_SET", Message: "没有选择要合并的时间表"}
	ErrSourceNotFound   = &DomainError{Code: "SOURCE_NOT_FOUND", Message: "要合并的时间表不存在"}
	ErrWeekOutOfRange   = &DomainError{Code: "WEEK_OUT_OF_RANGE", Message: "周次超出时间表范围"}
	ErrDecisionNotFound = &DomainError{Code: "DECISION_NOT_FOUND", Message: "选择的冲突项不存在"}

	// 以下为契约错误，说明调用方没有先做输入校验
	ErrDiscriminantMismatch = &DomainError{Code: "DISCRIMINANT_MISMATCH", Message: "排班条目的星期/日期与时间表类型不符"}
	ErrInvalidTime          = &DomainError{Code: "INVALID_TIME", Message: "排班条目的时间格式错误"}
	ErrMissingDateRange     = &DomainError{Code: "MISSING_DATE_RANGE", Message: "日期范围时间表缺少起止日期"}
)
