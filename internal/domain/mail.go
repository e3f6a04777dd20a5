package domain

const (
	MailTypeCreateUser    = "create_user"
	MailTypePasswordReset = "password_reset"
	MailTypeCommitSummary = "commit_summary"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

// CreateUserMailData 新建账号和管理员重置密码共用
type CreateUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// CommitSummaryMailData 覆盖提交后发送给时间表所有者的摘要
type CommitSummaryMailData struct {
	FullName      string   `json:"fullName"`
	TimetableName string   `json:"timetableName"`
	Inserted      int      `json:"inserted"`
	Deleted       int      `json:"deleted"`
	Replaced      []string `json:"replaced"` // 形如 "周一 10:00-11:00 张三"
}
