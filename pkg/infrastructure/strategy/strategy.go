// Package strategy holds the URL fetch tiers tried for every candidate URL:
// the known-CDN direct fetch, the anti-bot relay and the headless browser.
package strategy

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/service"
	"github.com/WangYihang/Logo-Harvester/pkg/infrastructure/classifier"
)

// DefaultCDNHosts are the image hosts fetched directly
var DefaultCDNHosts = []string{
	"logo.clearbit.com",
	"img.logo.dev",
	"cdn.brandfetch.io",
	"upload.wikimedia.org",
}

// MatchesHost reports whether the URL host equals one of hosts or is a
// subdomain of one
func MatchesHost(hosts []string, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return false
	}
	for _, h := range hosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// accept turns a payload into a download or a classified error
func accept(c service.Classifier, tier entity.Tier, p *entity.Payload) (*entity.Download, *entity.FetchError) {
	if p.StatusCode < 200 || p.StatusCode > 299 {
		return nil, entity.NewFetchError(entity.KindProvider, tier, p.RequestedURL, &statusError{code: p.StatusCode})
	}

	verdict := c.Classify(p.RequestedURL, p.FinalURL, p.ContentType, p.Body)
	if !verdict.IsImage() {
		return nil, entity.NewFetchError(entity.KindReject, tier, p.RequestedURL, &rejectError{
			classification: verdict,
			detail:         challengeDetail(p.Body),
		})
	}

	return &entity.Download{
		URL:       p.RequestedURL,
		Tier:      tier,
		Extension: verdict.Extension,
		Body:      p.Body,
	}, nil
}

func challengeDetail(body []byte) string {
	if len(body) == 0 || !classifier.LooksLikeHTML(body) {
		return ""
	}
	return classifier.DescribeChallenge(body).String()
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "unexpected status " + strconv.Itoa(e.code)
}

type rejectError struct {
	classification entity.Classification
	detail         string
}

func (e *rejectError) Error() string {
	msg := string(e.classification.Verdict)
	if e.classification.Reason != "" {
		msg += ": " + e.classification.Reason
	}
	if e.detail != "" {
		msg += " (" + e.detail + ")"
	}
	return msg
}

// attempt builds the log entry of one try
func attempt(target entity.Target, tier entity.Tier, rawURL string, n int) *entity.FetchAttempt {
	return &entity.FetchAttempt{
		Domain:  target.Domain,
		URL:     rawURL,
		Tier:    tier,
		Attempt: n,
	}
}

// finish fills outcome fields from the payload and error, then records it
func finish(recorder service.AttemptRecorder, a *entity.FetchAttempt, started time.Time, p *entity.Payload, err *entity.FetchError) {
	if recorder == nil {
		return
	}
	a.DurationMs = time.Since(started).Milliseconds()
	if p != nil {
		a.StatusCode = p.StatusCode
		a.ContentType = p.ContentType
	}
	switch {
	case err == nil:
		a.Outcome = entity.OutcomeAccepted
	case err.Kind == entity.KindReject:
		a.Outcome = entity.OutcomeRejected
		a.Kind = err.Kind
		a.Reason = err.Err.Error()
	default:
		a.Outcome = entity.OutcomeFailed
		a.Kind = err.Kind
		if err.Err != nil {
			a.Reason = err.Err.Error()
		}
	}
	recorder.Record(a)
}
