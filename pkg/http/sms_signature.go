package xhttp

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"

	"github.com/nimasrn/daily-mass/pkg/logger"
	"github.com/valyala/fasthttp"
)

const TwilioSignatureHeader = "X-Twilio-Signature"

// TwilioSignatureMiddleware checks form callbacks signed the way Twilio-style
// SMS providers do: base64 HMAC-SHA1 under the account auth token over the
// callback URL followed by every POST parameter, sorted by name, as
// name+value. publicURL is the URL configured at the provider; when empty the
// request URI is used, which only matches without a rewriting proxy. An empty
// token disables the check.
func TwilioSignatureMiddleware(authToken, publicURL string) MiddlewareFunc {
	return func(next RequestHandler) RequestHandler {
		if authToken == "" {
			return next
		}
		key := []byte(authToken)
		return func(ctx *RequestCtx) {
			url := publicURL
			if url == "" {
				url = string(ctx.URI().FullURI())
			}
			header := string(ctx.Request.Header.Peek(TwilioSignatureHeader))
			if !ValidTwilioSignature(key, url, ctx.PostArgs(), header) {
				logger.Warn("[xhttp] sms signature mismatch", "path", string(ctx.Path()), "ip", ctx.RemoteIP().String())
				ctx.Error(StatusText(StatusUnauthorized), StatusUnauthorized)
				return
			}
			next(ctx)
		}
	}
}

func ValidTwilioSignature(key []byte, url string, params *fasthttp.Args, header string) bool {
	got, err := base64.StdEncoding.DecodeString(header)
	if err != nil || len(got) == 0 {
		return false
	}
	return hmac.Equal(got, twilioMAC(key, url, params))
}

// SignTwilio returns the X-Twilio-Signature header value for a form callback.
func SignTwilio(key []byte, url string, params *fasthttp.Args) string {
	return base64.StdEncoding.EncodeToString(twilioMAC(key, url, params))
}

func twilioMAC(key []byte, url string, params *fasthttp.Args) []byte {
	type pair struct{ k, v []byte }
	var pairs []pair
	params.VisitAll(func(k, v []byte) {
		pairs = append(pairs, pair{append([]byte(nil), k...), append([]byte(nil), v...)})
	})
	sort.SliceStable(pairs, func(i, j int) bool {
		if c := bytes.Compare(pairs[i].k, pairs[j].k); c != 0 {
			return c < 0
		}
		return bytes.Compare(pairs[i].v, pairs[j].v) < 0
	})

	mac := hmac.New(sha1.New, key)
	mac.Write([]byte(url))
	for _, p := range pairs {
		mac.Write(p.k)
		mac.Write(p.v)
	}
	return mac.Sum(nil)
}
