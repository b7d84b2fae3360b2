package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		text     string
		buttonID string
		want     Intent
	}{
		{"STOP", "", IntentStop},
		{"  Stop  ", "", IntentStop},
		{"unsubscribe", "", IntentStop},
		{"Parar", "", IntentStop},
		{"tigil", "", IntentStop},
		{"START", "", IntentStart},
		{"Iniciar", "", IntentStart},
		{"full reading", "", IntentReading},
		{"Full   Reading", "", IntentReading},
		{"LECTURA COMPLETA", "", IntentReading},
		{"pagbasa", "", IntentReading},
		{"summary", "", IntentSummary},
		{"Reflexión", "", IntentSummary},
		{"buod", "", IntentSummary},
		{"thanks, amen", "", IntentPassthrough},
		{"please stop sending me this", "", IntentPassthrough},
		{"I'll start tomorrow", "", IntentPassthrough},
		{"", "", IntentPassthrough},
		{"", ButtonFullReading, IntentReading},
		{"", "SUMMARY", IntentSummary},
		{"Read more", ButtonSummary, IntentSummary},
		{"stop", "unknown_button", IntentStop},
	}

	for _, tt := range tests {
		t.Run(tt.text+"|"+tt.buttonID, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text, tt.buttonID))
		})
	}
}

func TestTruncate(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, truncate(short))

	long := make([]rune, MaxMessageLength+100)
	for i := range long {
		long[i] = 'á'
	}
	out := []rune(truncate(string(long)))
	assert.Len(t, out, MaxMessageLength)
	assert.Equal(t, '…', out[len(out)-1])
}
