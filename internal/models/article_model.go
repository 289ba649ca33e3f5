package models

import "time"

// Article is a read-only content entry from the article catalog.
// WeekRange holds the inclusive [min, max] gestational weeks the article applies to.
type Article struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Body      string    `json:"body" yaml:"body"`
	WeekRange [2]int    `json:"weekRange" yaml:"weekRange"`
	Tags      []string  `json:"tags" yaml:"tags"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// CoversWeek reports whether week falls inside the article's week range, bounds included.
func (a Article) CoversWeek(week int) bool {
	return week >= a.WeekRange[0] && week <= a.WeekRange[1]
}

// HasTag reports whether the article carries tag.
func (a Article) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
