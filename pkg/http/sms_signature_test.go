package xhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func formArgs(body string) *fasthttp.Args {
	var args fasthttp.Args
	args.Parse(body)
	return &args
}

func TestTwilioSignatureMiddleware(t *testing.T) {
	token := "auth-token"
	url := "https://mass.example.org/api/v1/webhooks/sms"
	body := "From=%2B15550009&Body=Lectura&MessageSid=SM123"
	h := TwilioSignatureMiddleware(token, url)(okHandler)

	newForm := func() *RequestCtx {
		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.SetMethod(fasthttp.MethodPost)
		ctx.Request.SetRequestURI("/api/v1/webhooks/sms")
		ctx.Request.Header.SetContentType("application/x-www-form-urlencoded")
		ctx.Request.SetBodyString(body)
		return ctx
	}

	t.Run("valid signature passes", func(t *testing.T) {
		ctx := newForm()
		ctx.Request.Header.Set(TwilioSignatureHeader, SignTwilio([]byte(token), url, formArgs(body)))
		h(ctx)
		assert.Equal(t, StatusOK, ctx.Response.StatusCode())
	})

	t.Run("parameter order does not matter", func(t *testing.T) {
		ctx := newForm()
		reordered := "MessageSid=SM123&Body=Lectura&From=%2B15550009"
		ctx.Request.Header.Set(TwilioSignatureHeader, SignTwilio([]byte(token), url, formArgs(reordered)))
		h(ctx)
		assert.Equal(t, StatusOK, ctx.Response.StatusCode())
	})

	t.Run("signed for another url", func(t *testing.T) {
		ctx := newForm()
		ctx.Request.Header.Set(TwilioSignatureHeader, SignTwilio([]byte(token), "https://elsewhere.example/sms", formArgs(body)))
		h(ctx)
		assert.Equal(t, StatusUnauthorized, ctx.Response.StatusCode())
	})

	t.Run("missing header", func(t *testing.T) {
		ctx := newForm()
		h(ctx)
		assert.Equal(t, StatusUnauthorized, ctx.Response.StatusCode())
	})

	t.Run("empty token disables the check", func(t *testing.T) {
		ctx := newForm()
		TwilioSignatureMiddleware("", url)(okHandler)(ctx)
		assert.Equal(t, StatusOK, ctx.Response.StatusCode())
	})
}
