package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core"
	"github.com/margdarshak/gateway/core/gateway"
)

// chatResponse is the body of every gateway response, success or not.
type chatResponse struct {
	Response    string  `json:"response"`
	Image       *string `json:"image"`
	Agent       string  `json:"agent"`
	DebugReason string  `json:"debug_reason,omitempty"`
}

func newChatResponse(res gateway.Result, secrets []string) chatResponse {
	body := chatResponse{
		Response:    core.Redact(res.Text(), secrets...),
		Agent:       string(res.Agent),
		DebugReason: res.Reason,
	}
	if body.Agent == "" {
		body.Agent = string(gateway.AgentGeneral)
	}
	if res.Image != "" {
		img := res.Image
		body.Image = &img
	}
	return body
}

// statusFor maps a result to its HTTP status. Without strict statuses every result is a 200.
func statusFor(res gateway.Result, strict bool) int {
	if !strict {
		return http.StatusOK
	}
	switch res.Kind {
	case gateway.KindDenied:
		switch res.Denial {
		case gateway.DenialAuthRequired:
			return http.StatusUnauthorized
		case gateway.DenialKeyRequired:
			return http.StatusPaymentRequired
		default:
			return http.StatusForbidden
		}
	case gateway.KindFailed:
		switch res.Failure.Kind {
		case gateway.FailureMalformed:
			return http.StatusBadRequest
		case gateway.FailureRateLimited:
			return http.StatusTooManyRequests
		case gateway.FailureInvalidCredential, gateway.FailureUpstream, gateway.FailureConnection:
			return http.StatusBadGateway
		case gateway.FailureMisconfigured:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	default:
		return http.StatusOK
	}
}

type chatHandler struct {
	svc        Gateway
	validate   *validator.Validate
	translator ut.Translator
	strict     bool
	secrets    []string
}

func registerChatAPI(app *echo.Echo, h chatHandler) {
	app.POST("/", h.chat)
}

func (h chatHandler) chat(ctx echo.Context) error {
	req, err := bindChatRequest(ctx)
	if err == nil {
		err = core.TranslateValidation(req.Validate(h.validate), h.translator)
	}
	if err != nil {
		return errors.Wrap(err, "binding request")
	}

	return h.respond(ctx, req, h.svc.Handle(ctx.Request().Context(), req))
}

func (h chatHandler) respond(ctx echo.Context, req gateway.Request, res gateway.Result) error {
	secrets := h.secrets
	if req.UserAPIKey != "" {
		secrets = append(append(make([]string, 0, len(secrets)+1), secrets...), req.UserAPIKey)
	}
	return ctx.JSON(statusFor(res, h.strict), newChatResponse(res, secrets))
}
