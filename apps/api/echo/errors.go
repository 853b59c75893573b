package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core"
	"github.com/margdarshak/gateway/core/gateway"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that renders every error in the chat response shape.
//
// Routing errors (404, 405, 413) keep their status. Validation errors are malformed requests.
// Anything else is an internal failure. Both are reported with status 200 unless strict statuses are enabled.
func newAppHTTPErrorHandler(conf *core.Config, logger core.Logger) echo.HTTPErrorHandler {
	secrets := conf.Secrets()

	return func(err error, ctx echo.Context) {
		var code int
		var res gateway.Result

		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			if code == http.StatusRequestEntityTooLarge {
				res = gateway.Failed(gateway.Failure{Kind: gateway.FailureMalformed}, gateway.AgentGeneral)
			} else {
				res = gateway.OK(fmt.Sprint(httpErr.Message), "", gateway.AgentGeneral)
			}
		case core.IsValidation(err):
			res = gateway.Failed(gateway.Failure{Kind: gateway.FailureMalformed}, gateway.AgentGeneral)
			code = statusFor(res, conf.Server.StrictStatus)
			logger.Debug("unreadable chat request", err)
		default: // any other error is a server error
			res = gateway.Failed(gateway.Failure{Kind: gateway.FailureInternal, Detail: err.Error()}, gateway.AgentGeneral)
			code = statusFor(res, conf.Server.StrictStatus)
			logger.Error(http.StatusText(http.StatusInternalServerError), errors.Wrap(err, "handling request"))
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, newChatResponse(res, secrets))
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
