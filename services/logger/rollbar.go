package logsvc

import (
	"context"
	"fmt"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/margdarshak/gateway/core"
)

type RollbarLogger struct {
	std     *log.Logger
	secrets []string
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger reports to Rollbar when a token is configured and always echoes to std.
// Every system credential in conf is redacted from messages, errors and extras.
func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std, secrets: conf.Secrets()}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// redactedError keeps the cause chain for stack traces while hiding secrets in the message.
type redactedError struct {
	msg   string
	cause error
}

func (e redactedError) Error() string { return e.msg }
func (e redactedError) Unwrap() error { return e.cause }

func (l RollbarLogger) redact(arg interface{}) interface{} {
	switch v := arg.(type) {
	case string:
		return core.Redact(v, l.secrets...)
	case error:
		if msg := core.Redact(v.Error(), l.secrets...); msg != v.Error() {
			return redactedError{msg: msg, cause: v}
		}
		return v
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = l.redact(val)
		}
		return out
	default:
		return arg
	}
}

// expected fmt: msg | error, map[string]interface{}, core.Person
// The first Person found is attached to the report through its context; no client-wide state is touched.
func (l RollbarLogger) prepare(msg string, args []interface{}) (string, []interface{}, context.Context) {
	ctx := context.Background()
	var personSet bool
	msg = core.Redact(msg, l.secrets...)
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		if p, ok := arg.(core.Person); ok {
			if !personSet && p.ID != "" { // only set one Person
				ctx = rollbar.NewPersonContext(ctx, &rollbar.Person{Id: p.ID, Username: p.Username, Email: p.Email})
				personSet = true
			}
		} else {
			newArgs = append(newArgs, l.redact(arg))
		}
	}
	return msg, newArgs, ctx
}

func (l RollbarLogger) report(ctx context.Context, level string, args []interface{}) {
	reported := make([]interface{}, 0, len(args)+1)
	reported = append(reported, args...)
	rollbar.Log(level, append(reported, ctx)...)
}

func (l RollbarLogger) print(level string, args []interface{}) {
	l.std.Printf("%s: %s", level, args[0])
	for _, arg := range args[1:] {
		if err, ok := arg.(error); ok {
			l.std.Printf("  %s", err.Error())
			continue
		}
		l.std.Printf("  %s", fmt.Sprintf("%+v", arg))
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	_, newArgs, ctx := l.prepare(msg, args)
	l.report(ctx, rollbar.DEBUG, newArgs)
	l.print("DEBUG", newArgs)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	_, newArgs, ctx := l.prepare(msg, args)
	l.report(ctx, rollbar.INFO, newArgs)
	l.print("INFO", newArgs)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	_, newArgs, ctx := l.prepare(msg, args)
	l.report(ctx, rollbar.WARN, newArgs)
	l.print("WARN", newArgs)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	_, newArgs, ctx := l.prepare(msg, args)
	l.report(ctx, rollbar.ERR, newArgs)
	l.print("ERROR", newArgs)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	msg, newArgs, ctx := l.prepare(msg, args)
	l.report(ctx, rollbar.CRIT, newArgs)
	l.print("FATAL", newArgs)
	rollbar.Wait()
	l.std.Fatal(msg)
}
