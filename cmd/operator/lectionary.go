package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/rs/zerolog/log"
)

// Lectionary serves fixture readings and reflections so the whole delivery
// path can run without the real content services.
type Lectionary struct{}

// GetReadings handles GET /readings/:date?version=. Sundays carry a second
// reading, other days do not.
func (l *Lectionary) GetReadings(c *gin.Context) {
	dateKey := c.Param("date")
	day, err := time.Parse("2006-01-02", dateKey)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	version := c.DefaultQuery("version", model.DefaultBibleVersion)

	readings := model.Readings{
		Date:         dateKey,
		Version:      version,
		FirstReading: model.Passage{Reference: "Is 55:10-11", Text: passageText(version, "So shall my word be that goes forth from my mouth.")},
		Psalm:        model.Passage{Reference: "Ps 34:4-7", Text: passageText(version, "From all their distress God rescues the just.")},
		Gospel:       model.Passage{Reference: "Mt 6:7-15", Text: passageText(version, "This is how you are to pray: Our Father in heaven.")},
	}
	if day.Weekday() == time.Sunday {
		readings.SecondReading = &model.Passage{Reference: "Rom 8:18-23", Text: passageText(version, "The sufferings of this present time are as nothing.")}
	}

	log.Info().Str("date", dateKey).Str("version", version).Msg("readings served")
	c.JSON(http.StatusOK, readings)
}

func passageText(version, text string) string {
	return "[" + version + "] " + text
}

type completionRequest struct {
	Model    string `json:"model" binding:"required"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages" binding:"required"`
}

// Complete handles POST /v1/chat/completions with a canned reflection.
func (l *Lectionary) Complete(c *gin.Context) {
	var req completionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}

	language := "English"
	for _, m := range req.Messages {
		if m.Role != "system" {
			continue
		}
		for _, lang := range model.Languages() {
			if strings.Contains(m.Content, "Write in "+string(lang)) {
				language = string(lang)
			}
		}
	}

	log.Info().Str("model", req.Model).Str("language", language).Msg("reflection generated")
	c.JSON(http.StatusOK, gin.H{
		"model": req.Model,
		"choices": []gin.H{{
			"index":         0,
			"finish_reason": "stop",
			"message": gin.H{
				"role":    "assistant",
				"content": "(" + language + ") God's word does not return empty. Pray today as Jesus taught, simply and with trust.",
			},
		}},
	})
}
