package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"

	applogger "RiskPulse/pkg/logger"
)

const stackSize = 4 << 10

// Recover turns a handler panic into a 500 in the standard envelope and logs
// it with a truncated stack. http.ErrAbortHandler is re-panicked so the
// server aborts the connection as usual.
func Recover(l *applogger.Logger) echo.MiddlewareFunc {
	if l == nil {
		l = applogger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (returnErr error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("%v", r)
				}
				stack := make([]byte, stackSize)
				stack = stack[:runtime.Stack(stack, false)]
				l.Error("panic in handler",
					applogger.String("method", c.Request().Method),
					applogger.String("route", c.Path()),
					applogger.Error(err),
					applogger.String("stack", string(stack)),
				)
				if c.Response().Committed {
					returnErr = errors.Join(errors.New("panic after response was committed"), err)
					return
				}
				returnErr = c.JSON(http.StatusInternalServerError, map[string]interface{}{
					"status":  http.StatusInternalServerError,
					"message": http.StatusText(http.StatusInternalServerError),
					"data": []map[string]string{{
						"code":    "ERR_INTERNAL",
						"message": "something went wrong",
					}},
				})
			}()
			return next(c)
		}
	}
}
