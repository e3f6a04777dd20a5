package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/config"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/scheduler"
)

const testSecret = "test-secret"

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.JWT.Expiration = 1

	h, err := NewHandler(cfg, nil, nil, nil, scheduler.DefaultPalette(), time.UTC)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	h.RegisterRoutes()
	return h
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) Response {
	t.Helper()

	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body %q: %v", rr.Body.String(), err)
	}
	return resp
}

func signToken(t *testing.T, secret string, role domain.Role, sub int64) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Subject:   strconv.FormatInt(sub, 10),
		},
	})
	ss, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return ss
}

func withValue(r *http.Request, key ContextKey, v any) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), key, v))
}

func TestDomainErrorResponse(t *testing.T) {
	h := newTestHandler(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/merge-view", nil)
	h.domainErrorResponse(rr, req, scheduler.ErrTypeMismatch)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	resp := decodeResponse(t, rr)
	if resp.Success {
		t.Error("success = true, want false")
	}
	if resp.Message != scheduler.ErrTypeMismatch.Message {
		t.Errorf("message = %q, want %q", resp.Message, scheduler.ErrTypeMismatch.Message)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok || data["code"] != "TYPE_MISMATCH" {
		t.Errorf("data = %v, want code TYPE_MISMATCH", resp.Data)
	}

	rr = httptest.NewRecorder()
	h.domainErrorResponse(rr, req, errors.New("connection refused"))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 for a non-domain error", rr.Code)
	}
}

func TestParseIDList(t *testing.T) {
	tests := []struct {
		in      string
		want    []int64
		wantErr bool
	}{
		{in: "", want: []int64{}},
		{in: "3", want: []int64{3}},
		{in: "3,1,2", want: []int64{3, 1, 2}},
		{in: " 1 , 2 ,", want: []int64{1, 2}},
		{in: "2,1,2", want: []int64{2, 1}},
		{in: "1,x", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseIDList(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseIDList(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseIDList(%q) error = %v", tt.in, err)
			continue
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("parseIDList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseWeekParam(t *testing.T) {
	week, err := parseWeekParam(httptest.NewRequest(http.MethodGet, "/x", nil))
	if err != nil || week != nil {
		t.Errorf("no week: got %v, %v; want nil, nil", week, err)
	}

	week, err = parseWeekParam(httptest.NewRequest(http.MethodGet, "/x?week=2", nil))
	if err != nil || week == nil || *week != 2 {
		t.Errorf("week=2: got %v, %v", week, err)
	}

	if _, err := parseWeekParam(httptest.NewRequest(http.MethodGet, "/x?week=second", nil)); err == nil {
		t.Error("week=second: expected error")
	}
}

func TestAuth(t *testing.T) {
	h := newTestHandler(t)

	var gotRole, gotSub string
	next := h.auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole = r.Context().Value(RoleCtxKey).(string)
		gotSub = r.Context().Value(SubCtxKey).(string)
		h.successResponse(w, r, "ok", nil)
	}))

	tests := []struct {
		name    string
		cookie  string
		success bool
		message string
	}{
		{name: "no cookie", message: "用户未登录"},
		{name: "garbage", cookie: "not-a-jwt", message: "无效的令牌"},
		{name: "wrong secret", cookie: signToken(t, "other", domain.RoleCoach, 7), message: "无效的令牌"},
		{name: "valid", cookie: signToken(t, testSecret, domain.RoleCoach, 7), success: true, message: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/timetables", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()
			next.ServeHTTP(rr, req)

			resp := decodeResponse(t, rr)
			if resp.Success != tt.success || resp.Message != tt.message {
				t.Errorf("got (%v, %q), want (%v, %q)", resp.Success, resp.Message, tt.success, tt.message)
			}
		})
	}

	if gotRole != string(domain.RoleCoach) || gotSub != "7" {
		t.Errorf("context role/sub = %q/%q, want %q/7", gotRole, gotSub, domain.RoleCoach)
	}
}

func TestRoutesRequireLogin(t *testing.T) {
	h := newTestHandler(t)

	for _, path := range []string{"/my-info", "/users", "/timetables", "/timetables/1/schedules", "/merge-view?ids=1"} {
		rr := httptest.NewRecorder()
		h.Mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

		resp := decodeResponse(t, rr)
		if resp.Success || resp.Message != "用户未登录" {
			t.Errorf("GET %s = (%v, %q), want 用户未登录", path, resp.Success, resp.Message)
		}
	}
}

func TestRequiredRole(t *testing.T) {
	h := newTestHandler(t)
	next := h.RequiredRole([]domain.Role{domain.RoleAdmin})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.successResponse(w, r, "ok", nil)
	}))

	for role, want := range map[domain.Role]bool{domain.RoleAdmin: true, domain.RoleCoach: false} {
		req := withValue(httptest.NewRequest(http.MethodPost, "/users", nil), RoleCtxKey, string(role))
		rr := httptest.NewRecorder()
		next.ServeHTTP(rr, req)

		if got := decodeResponse(t, rr).Success; got != want {
			t.Errorf("role %s: success = %v, want %v", role, got, want)
		}
	}
}

func TestRecoverer(t *testing.T) {
	h := newTestHandler(t)
	next := h.recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	next.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestCanAccess(t *testing.T) {
	owner := &domain.User{ID: 1, Role: domain.RoleCoach}
	other := &domain.User{ID: 2, Role: domain.RoleCoach}
	admin := &domain.User{ID: 3, Role: domain.RoleAdmin}
	tt := &domain.Timetable{ID: 10, OwnerID: 1}

	if !canAccess(owner, tt) {
		t.Error("owner should access own timetable")
	}
	if canAccess(other, tt) {
		t.Error("coach should not access another coach's timetable")
	}
	if !canAccess(admin, tt) {
		t.Error("admin should access every timetable")
	}
}

func TestPreventArchivedTimetable(t *testing.T) {
	h := newTestHandler(t)
	next := h.preventArchivedTimetable(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.successResponse(w, r, "ok", nil)
	}))

	for _, archived := range []bool{false, true} {
		tt := &domain.Timetable{ID: 1, Type: domain.TimetableTypeWeekly, IsArchived: archived}
		req := withValue(httptest.NewRequest(http.MethodPost, "/timetables/1/schedules/batch", nil), TimetableCtx, tt)
		rr := httptest.NewRecorder()
		next.ServeHTTP(rr, req)

		if got := decodeResponse(t, rr).Success; got == archived {
			t.Errorf("archived = %v: success = %v", archived, got)
		}
	}
}

func TestGetTimetableWeeks(t *testing.T) {
	h := newTestHandler(t)

	start := domain.NewDate(2025, time.March, 5)
	end := domain.NewDate(2025, time.March, 18)
	tt := &domain.Timetable{ID: 1, Type: domain.TimetableTypeDateRange, StartDate: &start, EndDate: &end}

	rr := httptest.NewRecorder()
	h.GetTimetableWeeks(rr, withValue(httptest.NewRequest(http.MethodGet, "/timetables/1/weeks", nil), TimetableCtx, tt))

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Weeks       []scheduler.WeekWindow `json:"weeks"`
			CurrentWeek int                    `json:"currentWeek"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !resp.Success || len(resp.Data.Weeks) != 3 {
		t.Fatalf("got success=%v weeks=%d, want 3 weeks", resp.Success, len(resp.Data.Weeks))
	}
	if got := resp.Data.Weeks[0].WeekStart.String(); got != "2025-03-03" {
		t.Errorf("first week starts %s, want 2025-03-03", got)
	}
	if resp.Data.CurrentWeek != -1 {
		t.Errorf("currentWeek = %d, want -1 for a past range", resp.Data.CurrentWeek)
	}

	weekly := &domain.Timetable{ID: 2, Type: domain.TimetableTypeWeekly}
	rr = httptest.NewRecorder()
	h.GetTimetableWeeks(rr, withValue(httptest.NewRequest(http.MethodGet, "/timetables/2/weeks", nil), TimetableCtx, weekly))
	if decodeResponse(t, rr).Success {
		t.Error("weekly timetable should have no weeks")
	}
}

func TestCommitSchedules_RejectsBadToken(t *testing.T) {
	h := newTestHandler(t)
	tt := &domain.Timetable{ID: 1, Type: domain.TimetableTypeWeekly}

	body := bytes.NewBufferString(`{"reportToken":"nope","overrides":[0]}`)
	req := withValue(httptest.NewRequest(http.MethodPost, "/timetables/1/schedules/commit", body), TimetableCtx, tt)
	rr := httptest.NewRecorder()
	h.CommitSchedules(rr, req)

	if decodeResponse(t, rr).Success {
		t.Error("expected a malformed report token to be rejected")
	}
}

func TestValidateConversion(t *testing.T) {
	start := domain.NewDate(2025, time.March, 3)
	end := domain.NewDate(2025, time.March, 1)
	weekly := &domain.Timetable{Type: domain.TimetableTypeWeekly}
	dated := &domain.Timetable{Type: domain.TimetableTypeDateRange}

	if err := validateConversion(weekly, &conversionRequest{}); err == nil {
		t.Error("weekly without range: expected error")
	}
	if err := validateConversion(weekly, &conversionRequest{StartDate: &start, EndDate: &end}); err == nil {
		t.Error("weekly with reversed range: expected error")
	}
	if err := validateConversion(weekly, &conversionRequest{StartDate: &end, EndDate: &start}); err != nil {
		t.Errorf("weekly with range: %v", err)
	}
	if err := validateConversion(dated, &conversionRequest{}); err != nil {
		t.Errorf("dated: %v", err)
	}
}

func TestDescribeEntry(t *testing.T) {
	day := domain.Monday
	date := domain.NewDate(2025, time.March, 3)

	weekly := &domain.ScheduleEntry{StudentName: "张三", DayOfWeek: &day, StartTime: "10:00", EndTime: "11:00"}
	if got := describeEntry(weekly); got != "周一 10:00-11:00 张三" {
		t.Errorf("describeEntry(weekly) = %q", got)
	}

	dated := &domain.ScheduleEntry{StudentName: "李四", ScheduleDate: &date, StartTime: "08:30", EndTime: "09:15"}
	if got := describeEntry(dated); got != "2025-03-03 08:30-09:15 李四" {
		t.Errorf("describeEntry(dated) = %q", got)
	}
}

func TestMergeViewTitle(t *testing.T) {
	view := &scheduler.MergeView{
		Sources: []scheduler.MergeSource{{Name: "一班"}, {Name: "二班"}},
	}
	if got := mergeViewTitle(view); got != "一班、二班 合并课表" {
		t.Errorf("weekly title = %q", got)
	}

	start := domain.NewDate(2025, time.March, 10)
	selected := 1
	view.Weeks = []scheduler.WeekWindow{
		{Index: 0, WeekStart: start.AddDays(-7), WeekEnd: start.AddDays(-1)},
		{Index: 1, WeekStart: start, WeekEnd: start.AddDays(6)},
	}
	view.SelectedWeek = &selected
	if got := mergeViewTitle(view); got != "一班、二班 合并课表（第 2 周 2025-03-10 ~ 2025-03-16）" {
		t.Errorf("dated title = %q", got)
	}
}

func TestConflictReport_SurvivesRedisRoundTrip(t *testing.T) {
	day, err := domain.ParseDate("2025-03-03")
	if err != nil {
		t.Fatal(err)
	}
	entry := func(id int64, start, end, student string) domain.ScheduleEntry {
		d := day
		return domain.ScheduleEntry{ID: id, StudentName: student, ScheduleDate: &d, StartTime: start, EndTime: end}
	}

	existing := []domain.ScheduleEntry{entry(9, "09:00", "10:00", "Dan")}
	candidates := []domain.ScheduleEntry{
		entry(0, "10:00", "11:00", "Alice"),
		entry(0, "10:30", "11:30", "Bob"),
		entry(0, "09:30", "10:00", "Carol"),
	}

	check, err := scheduler.DetectConflicts(domain.TimetableTypeDateRange, existing, candidates)
	if err != nil {
		t.Fatalf("DetectConflicts() error = %v", err)
	}

	data, err := json.Marshal(conflictReport{TimetableID: 3, Result: check})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var report conflictReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	if report.TimetableID != 3 {
		t.Errorf("timetableID = %d, want 3", report.TimetableID)
	}
	if !slices.Equal(report.Result.AcceptedIndexes, check.AcceptedIndexes) {
		t.Errorf("acceptedIndexes = %v, want %v", report.Result.AcceptedIndexes, check.AcceptedIndexes)
	}
	decisions := scheduler.Decisions(report.Result.Conflicts)
	if len(decisions) != 2 {
		t.Fatalf("decisions = %+v, want Bob against Alice and Carol against Dan", decisions)
	}
	if idx := decisions[0].ExistingCandidateIndex; idx == nil || *idx != 0 {
		t.Errorf("existingCandidateIndex = %v, want 0", idx)
	}
	if decisions[1].ExistingCandidateIndex != nil || decisions[1].ExistingSchedule.ID != 9 {
		t.Errorf("decision = %+v, want stored entry 9", decisions[1])
	}

	summarize := func(ops []scheduler.Operation) []string {
		out := make([]string, 0, len(ops))
		for _, op := range ops {
			switch op.Kind {
			case scheduler.OperationDelete:
				out = append(out, "删除 "+strconv.FormatInt(op.ScheduleID, 10))
			case scheduler.OperationInsert:
				out = append(out, "插入 "+describeEntry(op.Schedule))
			}
		}
		return out
	}

	overrides := []int{0, 1}
	before, err := scheduler.BuildCommitPlan(domain.TimetableTypeDateRange, check, overrides)
	if err != nil {
		t.Fatalf("BuildCommitPlan() before round trip error = %v", err)
	}
	after, err := scheduler.BuildCommitPlan(domain.TimetableTypeDateRange, report.Result, overrides)
	if err != nil {
		t.Fatalf("BuildCommitPlan() after round trip error = %v", err)
	}

	// Alice 被 Bob 撤回，Dan 被 Carol 覆盖
	want := []string{
		"插入 2025-03-03 10:30-11:30 Bob",
		"删除 9",
		"插入 2025-03-03 09:30-10:00 Carol",
	}
	if got := summarize(before); !slices.Equal(got, want) {
		t.Errorf("plan before round trip = %v, want %v", got, want)
	}
	if got := summarize(after); !slices.Equal(got, want) {
		t.Errorf("plan after round trip = %v, want %v", got, want)
	}
}

func TestSessionCookie(t *testing.T) {
	h := newTestHandler(t)
	user := &domain.User{ID: 5, Role: domain.RoleCoach}
	now := time.Now()

	cookie, err := h.sessionCookie(user, now)
	if err != nil {
		t.Fatalf("sessionCookie() error = %v", err)
	}
	if cookie.Name != tokenCookieName || !cookie.HttpOnly || cookie.Secure {
		t.Errorf("cookie = %+v", cookie)
	}

	claims := &AuthClaims{}
	if _, err := jwt.ParseWithClaims(cookie.Value, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	}); err != nil {
		t.Fatalf("ParseWithClaims() error = %v", err)
	}
	if claims.Subject != "5" || claims.Role != string(domain.RoleCoach) {
		t.Errorf("claims = %+v", claims)
	}

	h.config.Environment = "production"
	cookie, err = h.sessionCookie(user, now)
	if err != nil {
		t.Fatalf("sessionCookie() error = %v", err)
	}
	if !cookie.Secure || cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("production cookie = %+v", cookie)
	}
}

func TestActiveAndOpenTimetables(t *testing.T) {
	timetables := []*domain.Timetable{
		{ID: 1, Name: "春季", IsArchived: true},
		{ID: 2, Name: "暑期"},
		{ID: 3, Name: "每周", IsActive: true},
	}

	if got := activeTimetable(timetables); got == nil || got.ID != 3 {
		t.Errorf("activeTimetable() = %+v, want 3", got)
	}
	if got := activeTimetable(timetables[:2]); got != nil {
		t.Errorf("activeTimetable() = %+v, want nil", got)
	}
	if got := openTimetables(timetables); !slices.Equal(got, []string{"暑期", "每周"}) {
		t.Errorf("openTimetables() = %v", got)
	}
}

func TestUserConstraintError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"username", fmt.Errorf("insert: %w", &pgconn.PgError{ConstraintName: "users_username_key"}), "用户名已存在"},
		{"email", &pgconn.PgError{ConstraintName: "users_email_key"}, "邮箱已存在"},
		{"other constraint", &pgconn.PgError{ConstraintName: "users_pkey"}, ""},
		{"not a pg error", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := userConstraintError(tt.err)
			switch {
			case tt.want == "" && got != nil:
				t.Errorf("userConstraintError() = %v, want nil", got)
			case tt.want != "" && (got == nil || got.Error() != tt.want):
				t.Errorf("userConstraintError() = %v, want %q", got, tt.want)
			}
		})
	}
}

func TestUsersRequireAdmin(t *testing.T) {
	h := newTestHandler(t)
	cookie := &http.Cookie{Name: tokenCookieName, Value: signToken(t, testSecret, domain.RoleCoach, 7)}

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/users"},
		{http.MethodPost, "/users"},
		{http.MethodGet, "/users/3"},
		{http.MethodPost, "/users/3/reset-password"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		h.Mux.ServeHTTP(rr, req)

		resp := decodeResponse(t, rr)
		if resp.Success || resp.Message != "权限不足" {
			t.Errorf("%s %s = (%v, %q), want 权限不足", route.method, route.path, resp.Success, resp.Message)
		}
	}
}
