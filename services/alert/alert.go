// Package alertsvc tells the operator when an upstream rejects a system-owned credential.
package alertsvc

import (
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/margdarshak/gateway/core"
	"github.com/margdarshak/gateway/core/gateway"
)

// NowFunc is mockable in tests.
var NowFunc = func() time.Time { return time.Now().UTC() }

type credentialRejectedData struct {
	AppName     string
	Env         string
	Provider    gateway.Provider
	Fingerprint string
	At          string
	Interval    time.Duration
}

// Alerter emails the operator at most once per interval per provider.
type Alerter struct {
	conf     *core.Config
	mailer   core.EmailService
	logger   core.Logger
	to       []mail.Address
	interval time.Duration
	system   gateway.SystemCredentials

	mu   sync.Mutex
	last map[gateway.Provider]time.Time
}

var _ gateway.CredentialAlerter = (*Alerter)(nil)

func NewAlerter(conf *core.Config, system gateway.SystemCredentials, mailer core.EmailService, logger core.Logger) *Alerter {
	to := make([]mail.Address, 0, len(conf.Alerts.To))
	for _, addr := range conf.Alerts.To {
		if a, err := mail.ParseAddress(addr); err == nil {
			to = append(to, *a)
		} else {
			logger.Warn(fmt.Sprintf("ignoring invalid alert recipient %q", addr), err)
		}
	}
	return &Alerter{
		conf:     conf,
		mailer:   mailer,
		logger:   logger,
		to:       to,
		interval: conf.Alerts.Interval,
		system:   system,
		last:     make(map[gateway.Provider]time.Time),
	}
}

// CredentialRejected never blocks the request that observed the rejection.
func (a *Alerter) CredentialRejected(provider gateway.Provider) {
	now := NowFunc()
	fingerprint := core.Fingerprint(a.system.For(provider))
	a.logger.Error(fmt.Sprintf("upstream %s rejected the system credential %s", provider, fingerprint))

	if !a.conf.Alerts.Enabled || len(a.to) == 0 || !a.allow(provider, now) {
		return
	}
	a.mailer.SendMessages(&core.EmailMessage{
		To:           a.to,
		Subject:      fmt.Sprintf("%s rejected the system API key", provider),
		TemplateName: "credential_rejected",
		TemplateData: credentialRejectedData{
			AppName:     a.conf.AppName,
			Env:         a.conf.Env,
			Provider:    provider,
			Fingerprint: fingerprint,
			At:          now.Format(time.RFC3339),
			Interval:    a.interval,
		},
	})
}

func (a *Alerter) allow(provider gateway.Provider, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if last, ok := a.last[provider]; ok && now.Sub(last) < a.interval {
		return false
	}
	a.last[provider] = now
	return true
}
