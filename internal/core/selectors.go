package core

import (
	"math"
	"time"

	"pregnancy-guide-go/internal/models"
)

const (
	// MaxGestationalWeek is the last week a pregnancy is tracked for.
	MaxGestationalWeek = 42

	pregnancyLength = 280 * 24 * time.Hour
	weekLength      = 7 * 24 * time.Hour
)

// CurrentGestationalWeek derives the pregnancy week at now from the due date.
// The due date minus 280 days is taken as the start of week 1. The result is
// absent (false) when there is no due date or the week falls outside 1..42.
func CurrentGestationalWeek(dueDate *time.Time, now time.Time) (int, bool) {
	if dueDate == nil {
		return 0, false
	}
	start := dueDate.Add(-pregnancyLength)
	elapsed := now.Sub(start)
	week := int(math.Floor(float64(elapsed)/float64(weekLength))) + 1
	if week < 1 || week > MaxGestationalWeek {
		return 0, false
	}
	return week, true
}

// FavoriteArticlesDetailed resolves favorite ids against articles. The result
// keeps the order of articles; ids without a matching article are dropped.
func FavoriteArticlesDetailed(favoriteIDs []string, articles []models.Article) []models.Article {
	if len(favoriteIDs) == 0 {
		return []models.Article{}
	}
	wanted := make(map[string]struct{}, len(favoriteIDs))
	for _, id := range favoriteIDs {
		wanted[id] = struct{}{}
	}
	out := make([]models.Article, 0, len(favoriteIDs))
	for _, a := range articles {
		if _, ok := wanted[a.ID]; ok {
			out = append(out, a)
			delete(wanted, a.ID)
		}
	}
	return out
}
