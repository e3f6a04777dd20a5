package jobs_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/domain"
	"github.com/sysu-ecnc-dev/class-timetable/backend/internal/jobs"
)

type fakeArchiver struct {
	calls []domain.Date
	err   error
}

func (f *fakeArchiver) ArchiveExpiredTimetables(today domain.Date) (int64, error) {
	f.calls = append(f.calls, today)
	return 2, f.err
}

func TestArchiveExpired(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	archiver := &fakeArchiver{}

	jobs.ArchiveExpired(archiver, loc)
	archiver.err = errors.New("db down")
	jobs.ArchiveExpired(archiver, loc)

	if len(archiver.calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(archiver.calls))
	}
	if want := domain.Today(loc); !archiver.calls[0].Equal(want) && !archiver.calls[0].Equal(want.AddDays(-1)) {
		t.Errorf("archived with today = %s, want %s", archiver.calls[0], want)
	}
}

func TestNewScheduler(t *testing.T) {
	c, err := jobs.NewScheduler("0 3 * * *", time.UTC, &fakeArchiver{})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if len(c.Entries()) != 1 {
		t.Errorf("got %d entries, want 1", len(c.Entries()))
	}

	if _, err := jobs.NewScheduler("every night", time.UTC, &fakeArchiver{}); err == nil {
		t.Error("NewScheduler() expected an error for an invalid expression")
	}
}
