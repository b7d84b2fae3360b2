package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nimasrn/daily-mass/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func sampleReadings() *model.Readings {
	return &model.Readings{
		Date:         "2025-03-11",
		Version:      "ABTAG2001",
		FirstReading: model.Passage{Reference: "Is 55:10-11", Text: "Ganito ang sabi ng Panginoon"},
		Psalm:        model.Passage{Reference: "Ps 34", Text: "Iniligtas ng Panginoon"},
		Gospel:       model.Passage{Reference: "Mt 6:7-15", Text: "Sinabi ni Jesus"},
	}
}

func TestGeneratorClient_Generate(t *testing.T) {
	captured := make(chan capturedRequest, 1)
	base := startServer(t, func(ctx *fasthttp.RequestCtx) {
		captured <- capturedRequest{
			Path: string(ctx.Path()),
			Auth: string(ctx.Request.Header.Peek("Authorization")),
			Body: append([]byte(nil), ctx.PostBody()...),
		}
		ctx.SetBodyString(`{"choices":[{"message":{"role":"assistant","content":"  Magandang pagninilay.  "}}]}`)
	})

	client := NewGeneratorClient(base, "sk-test", "gpt-4o-mini", time.Second)
	text, err := client.Generate(context.Background(), sampleReadings(), model.LanguageTagalog)
	require.NoError(t, err)
	assert.Equal(t, "Magandang pagninilay.", text)

	req := <-captured
	assert.Equal(t, "/v1/chat/completions", req.Path)
	assert.Equal(t, "Bearer sk-test", req.Auth)

	var body chatRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "gpt-4o-mini", body.Model)
	require.Len(t, body.Messages, 2)
	assert.Contains(t, body.Messages[0].Content, "Tagalog")
	assert.Contains(t, body.Messages[1].Content, "Gospel (Mt 6:7-15)")
	assert.NotContains(t, body.Messages[1].Content, "Second Reading")
}

func TestGeneratorClient_NoChoices(t *testing.T) {
	base := startServer(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString(`{"choices":[]}`)
	})

	text, err := NewGeneratorClient(base, "", "m", time.Second).Generate(context.Background(), sampleReadings(), model.LanguageEnglish)
	assert.NoError(t, err)
	assert.Empty(t, text)
}

func TestGeneratorClient_Failure(t *testing.T) {
	base := startServer(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
	})

	_, err := NewGeneratorClient(base, "", "m", time.Second).Generate(context.Background(), sampleReadings(), model.LanguageEnglish)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Retryable())
}
