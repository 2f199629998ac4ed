package services

import (
	"context"
	"time"

	"github.com/momentum-app/momentum-server/internal/models"
	"github.com/momentum-app/momentum-server/pkg/apperr"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxStreakLookbackDays bounds the streak walk so pathological data can
// never turn it into an unbounded scan.
const maxStreakLookbackDays = 3650

// HomeService derives the calendar views: streaks and weekly grids.
type HomeService struct {
	moments MomentStore
}

// NewHomeService creates a new instance of HomeService.
func NewHomeService(moments MomentStore) *HomeService {
	return &HomeService{moments: moments}
}

// DayCompletion is one cell of the weekly grid.
type DayCompletion struct {
	Date       string `json:"date"`
	IsComplete bool   `json:"is_complete"`
}

// WeeklySnapshot is the Monday-to-Sunday completion grid of one ISO week.
type WeeklySnapshot struct {
	WeekStart string          `json:"week_start"`
	WeekEnd   string          `json:"week_end"`
	Days      []DayCompletion `json:"days"`
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay is the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// isoWeekMonday returns the Monday of t's ISO week at local midnight.
func isoWeekMonday(t time.Time) time.Time {
	day := StartOfDay(t)
	wd := int(day.Weekday())
	if wd == 0 {
		wd = 7 // Sunday closes the ISO week
	}
	return day.AddDate(0, 0, 1-wd)
}

const dayKeyLayout = "2006-01-02"

// dayAggregate buckets a user's moments by the calendar days their
// validity windows cover.
type dayAggregate struct {
	total     int
	completed int
}

func aggregateByDay(moments []models.Moment, from, to time.Time) map[string]*dayAggregate {
	agg := make(map[string]*dayAggregate)
	for _, m := range moments {
		day := StartOfDay(m.StartDate)
		if day.Before(from) {
			day = from
		}
		for ; !day.After(m.EndDate) && !day.After(to); day = day.AddDate(0, 0, 1) {
			key := day.Format(dayKeyLayout)
			a := agg[key]
			if a == nil {
				a = &dayAggregate{}
				agg[key] = a
			}
			a.total++
			if m.IsCompleted {
				a.completed++
			}
		}
	}
	return agg
}

// dayComplete is the day criterion: every moment scheduled for the day
// is complete, and there is at least one.
func (a *dayAggregate) dayComplete() bool {
	return a != nil && a.total > 0 && a.completed == a.total
}

// ConsecutiveDays computes how many days in a row, ending at the
// reference date, were fully completed. The reference day itself is
// verified: a day with outstanding moments breaks the streak at zero.
func (s *HomeService) ConsecutiveDays(ctx context.Context, userID primitive.ObjectID, ref time.Time) (int, error) {
	day := StartOfDay(ref)
	from := day.AddDate(0, 0, -maxStreakLookbackDays)

	moments, err := s.moments.GetMomentsByUserInRange(ctx, userID, from, EndOfDay(ref))
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to fetch moments", err)
	}

	agg := aggregateByDay(moments, from, day)

	streak := 0
	for d := day; !d.Before(from); d = d.AddDate(0, 0, -1) {
		if !agg[d.Format(dayKeyLayout)].dayComplete() {
			break
		}
		streak++
	}
	return streak, nil
}

// WeekSnapshot produces the 7-entry Monday-to-Sunday completion grid of
// the reference date's ISO week.
func (s *HomeService) WeekSnapshot(ctx context.Context, userID primitive.ObjectID, ref time.Time) (*WeeklySnapshot, error) {
	monday := isoWeekMonday(ref)
	sunday := monday.AddDate(0, 0, 6)

	moments, err := s.moments.GetMomentsByUserInRange(ctx, userID, monday, EndOfDay(sunday))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch moments", err)
	}

	agg := aggregateByDay(moments, monday, sunday)

	days := make([]DayCompletion, 0, 7)
	for i := 0; i < 7; i++ {
		d := monday.AddDate(0, 0, i)
		key := d.Format(dayKeyLayout)
		days = append(days, DayCompletion{
			Date:       key,
			IsComplete: agg[key].dayComplete(),
		})
	}

	return &WeeklySnapshot{
		WeekStart: monday.Format(dayKeyLayout),
		WeekEnd:   sunday.Format(dayKeyLayout),
		Days:      days,
	}, nil
}

// RecentMoments returns the user's latest check-ins for the home view.
func (s *HomeService) RecentMoments(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.Moment, error) {
	if limit <= 0 {
		limit = 20
	}
	moments, err := s.moments.GetRecentByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to fetch moments", err)
	}
	return moments, nil
}
