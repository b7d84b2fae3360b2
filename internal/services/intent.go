package services

import "strings"

type Intent string

const (
	IntentStop        Intent = "stop"
	IntentStart       Intent = "start"
	IntentReading     Intent = "reading"
	IntentSummary     Intent = "summary"
	IntentPassthrough Intent = "passthrough"
)

// Interactive button ids sent with the daily notification template.
const (
	ButtonFullReading = "full_reading"
	ButtonSummary     = "summary"
	ButtonStop        = "stop"
	ButtonStart       = "start"
)

var vocabulary = map[string]Intent{
	// English
	"stop":         IntentStop,
	"unsubscribe":  IntentStop,
	"cancel":       IntentStop,
	"quit":         IntentStop,
	"end":          IntentStop,
	"start":        IntentStart,
	"subscribe":    IntentStart,
	"resume":       IntentStart,
	"unstop":       IntentStart,
	"reading":      IntentReading,
	"readings":     IntentReading,
	"full reading": IntentReading,
	"read":         IntentReading,
	"summary":      IntentSummary,
	"reflection":   IntentSummary,

	// Spanish
	"parar":            IntentStop,
	"detener":          IntentStop,
	"cancelar":         IntentStop,
	"baja":             IntentStop,
	"iniciar":          IntentStart,
	"comenzar":         IntentStart,
	"reanudar":         IntentStart,
	"lectura":          IntentReading,
	"lecturas":         IntentReading,
	"lectura completa": IntentReading,
	"resumen":          IntentSummary,
	"reflexion":        IntentSummary,
	"reflexión":        IntentSummary,

	// Tagalog
	"tigil":         IntentStop,
	"itigil":        IntentStop,
	"simula":        IntentStart,
	"simulan":       IntentStart,
	"pagbasa":       IntentReading,
	"buong pagbasa": IntentReading,
	"buod":          IntentSummary,
	"pagninilay":    IntentSummary,
}

var buttons = map[string]Intent{
	ButtonFullReading: IntentReading,
	ButtonSummary:     IntentSummary,
	ButtonStop:        IntentStop,
	ButtonStart:       IntentStart,
}

// normalize lower-cases and collapses whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Classify maps an inbound message to an intent. A known button id wins over
// the text. Text must equal a vocabulary entry after normalization; a
// command word inside a longer sentence is passthrough.
func Classify(text, buttonID string) Intent {
	if buttonID != "" {
		if intent, ok := buttons[normalize(buttonID)]; ok {
			return intent
		}
		if intent, ok := vocabulary[normalize(buttonID)]; ok {
			return intent
		}
	}
	if intent, ok := vocabulary[normalize(text)]; ok {
		return intent
	}
	return IntentPassthrough
}
