package utils

import (
	"fmt"
	"math/rand"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "霞", "飞", "玲", "超",
	"华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌", "庆",
	"建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣", "悦",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

// GenerateUsernameFromChineseName 取每个字拼音的前缀再拼上几位数字
func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, py := range pinyinArray {
		length := rand.Intn(len(py)) + 1
		username += py[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

// GenerateRandomCoach 生成一个教练账号
func GenerateRandomCoach(password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         domain.RoleCoach,
	}

	return user, nil
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	randomPassword := make([]rune, length)
	for i := range randomPassword {
		randomPassword[i] = letters[rand.Intn(len(letters))]
	}
	return string(randomPassword)
}

// GenerateRandomStudents 生成 n 个互不相同的学生姓名
func GenerateRandomStudents(n int) []string {
	seen := make(map[string]bool, n)
	students := make([]string, 0, n)
	// 名字空间有限，尝试次数设上限避免死循环
	for attempts := 0; len(students) < n && attempts < n*20; attempts++ {
		name := GenerateRandomChineseName()
		if seen[name] {
			continue
		}
		seen[name] = true
		students = append(students, name)
	}
	return students
}

// GenerateRandomClassTime 生成 08:00 至 21:00 之间、整点或半点开始、时长 1~2 小时的时间段
func GenerateRandomClassTime() (string, string) {
	start := 8*60 + rand.Intn(23)*30
	end := start + 60 + rand.Intn(3)*30
	return fmt.Sprintf("%02d:%02d", start/60, start%60), fmt.Sprintf("%02d:%02d", end/60, end%60)
}

func GenerateRandomWeeklyEntries(students []string, n int) []domain.ScheduleEntry {
	entries := make([]domain.ScheduleEntry, 0, n)
	for i := 0; i < n; i++ {
		day := domain.DayOfWeek(rand.Intn(7) + 1)
		start, end := GenerateRandomClassTime()
		entries = append(entries, domain.ScheduleEntry{
			StudentName: students[rand.Intn(len(students))],
			DayOfWeek:   &day,
			StartTime:   start,
			EndTime:     end,
		})
	}
	return entries
}

// GenerateRandomDatedEntries 生成落在 [start, end] 内的日期条目
func GenerateRandomDatedEntries(students []string, start, end domain.Date, n int) []domain.ScheduleEntry {
	span := end.DaysSince(start) + 1
	entries := make([]domain.ScheduleEntry, 0, n)
	for i := 0; i < n; i++ {
		date := start.AddDays(rand.Intn(span))
		from, to := GenerateRandomClassTime()
		entries = append(entries, domain.ScheduleEntry{
			StudentName:  students[rand.Intn(len(students))],
			ScheduleDate: &date,
			StartTime:    from,
			EndTime:      to,
		})
	}
	return entries
}

// GenerateRandomTimetable 日期范围时间表从 today 前两周内开始，持续 2~8 周
func GenerateRandomTimetable(ownerID int64, kind domain.TimetableType, today domain.Date) *domain.Timetable {
	tt := &domain.Timetable{
		OwnerID: ownerID,
		Type:    kind,
	}

	switch kind {
	case domain.TimetableTypeWeekly:
		tt.Name = fmt.Sprintf("每周课表%03d", rand.Intn(1000))
	case domain.TimetableTypeDateRange:
		start := today.AddDays(-rand.Intn(14))
		end := start.AddDays(7*(rand.Intn(7)+2) - 1)
		tt.Name = fmt.Sprintf("%s 起 %d 周课表", start, (end.DaysSince(start)+1)/7)
		tt.StartDate = &start
		tt.EndDate = &end
	}

	return tt
}
