package model

import "time"

// ReflectionArtifact is the generated reflection for one (date, language).
type ReflectionArtifact struct {
	DateKey   string    `json:"date_key"`
	Language  Language  `json:"language"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DateKeyLayout is the canonical calendar-day form used for cache keys.
const DateKeyLayout = "2006-01-02"

func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}
