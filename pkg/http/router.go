package xhttp

import (
	"fmt"

	"github.com/fasthttp/router"
	"github.com/nimasrn/daily-mass/pkg/logger"
)

type Router = router.Router
type Group = router.Group

func NewRouter() *Router {
	return router.New()
}

// CreateDefaultRouter answers every routing failure and handler panic with a
// JSON error body. Path redirects are off.
func CreateDefaultRouter() *Router {
	r := NewRouter()
	r.RedirectFixedPath = false
	r.RedirectTrailingSlash = false
	r.SaveMatchedRoutePath = true
	r.HandleMethodNotAllowed = true
	r.HandleOPTIONS = false
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = MethodNotAllowedHandler
	r.PanicHandler = panicHandler
	return r
}

func NotFoundHandler(ctx *RequestCtx) {
	jsonError(ctx, StatusNotFound)
}

func MethodNotAllowedHandler(ctx *RequestCtx) {
	jsonError(ctx, StatusMethodNotAllowed)
}

func panicHandler(ctx *RequestCtx, v interface{}) {
	logger.Error("[http] handler panic", "path", string(ctx.Path()), "panic", fmt.Sprint(v))
	jsonError(ctx, StatusInternalServerError)
}

func jsonError(ctx *RequestCtx, status int) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(fmt.Sprintf(`{"error":%q}`, StatusText(status)))
}
