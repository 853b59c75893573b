package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/margdarshak/gateway/core"
	"github.com/margdarshak/gateway/core/gateway"
)

const (
	fieldMessages = "messages"
	fieldMode     = "mode"
	fieldModel    = "model"
	fieldImage    = "image"

	maxMultipartMemory = 32 << 20
)

var errUnreadableBody = errors.New("request body is neither multipart form data nor JSON")

// chatBody is the JSON encoding of a chat turn. messages may arrive as an array or as a JSON-encoded string of one.
type chatBody struct {
	Messages json.RawMessage `json:"messages"`
	Mode     string          `json:"mode"`
	Model    string          `json:"model"`
}

// decodeMessages accepts a JSON array of messages, or a JSON string holding one.
func decodeMessages(raw []byte) ([]gateway.Message, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, errors.Wrap(err, "decoding messages string")
		}
		raw = []byte(inner)
	}

	var msgs []gateway.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, errors.Wrap(err, "decoding messages")
	}
	return msgs, nil
}

// bindChatRequest normalizes a multipart or JSON body plus the credential headers into a gateway.Request.
func bindChatRequest(ctx echo.Context) (gateway.Request, error) {
	r := ctx.Request()
	req := gateway.Request{
		UserAPIKey:   core.CleanString(r.Header.Get(headerUserAPIKey)),
		SessionToken: bearerToken(r.Header.Get(echo.HeaderAuthorization)),
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get(echo.HeaderContentType))
	var err error
	switch mediaType {
	case echo.MIMEMultipartForm, echo.MIMEApplicationForm:
		err = bindFormOrJSON(ctx, &req)
	default:
		err = bindJSON(r, &req)
	}
	if err != nil {
		return req, core.NewValidationError(errors.Wrap(err, errUnreadableBody.Error()))
	}
	return req, nil
}

// bindFormOrJSON binds form data, and decodes the body as JSON instead when the form has no messages field.
func bindFormOrJSON(ctx echo.Context, req *gateway.Request) error {
	r := ctx.Request()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.Wrap(err, "reading body")
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	formErr := bindForm(ctx, req)
	if _, ok := r.Form[fieldMessages]; ok {
		return formErr
	}

	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err := bindJSON(r, req); err != nil {
		if formErr != nil {
			return formErr
		}
		return err
	}
	return nil
}

func bindForm(ctx echo.Context, req *gateway.Request) error {
	r := ctx.Request()
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return errors.Wrap(err, "parsing form")
	}

	msgs, err := decodeMessages([]byte(ctx.FormValue(fieldMessages)))
	if err != nil {
		return err
	}
	req.Messages = msgs
	req.Mode = ctx.FormValue(fieldMode)
	req.Model = ctx.FormValue(fieldModel)

	fh, err := ctx.FormFile(fieldImage)
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return nil
	case err != nil:
		return errors.Wrap(err, "reading image")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening image")
	}
	defer func() { _ = f.Close() }()
	if req.Image, err = io.ReadAll(f); err != nil {
		return errors.Wrap(err, "reading image")
	}
	return nil
}

func bindJSON(r *http.Request, req *gateway.Request) error {
	var body chatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return errors.Wrap(err, "decoding body")
	}
	msgs, err := decodeMessages(body.Messages)
	if err != nil {
		return err
	}
	req.Messages = msgs
	req.Mode = body.Mode
	req.Model = body.Model
	return nil
}

// bearerToken extracts the session token from an Authorization header. Anything but a Bearer credential is ignored.
func bearerToken(header string) string {
	header = core.CleanString(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return core.CleanString(header[7:])
}
