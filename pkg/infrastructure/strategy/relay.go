package strategy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/WangYihang/Logo-Harvester/pkg/domain/service"
	"golang.org/x/sync/semaphore"
)

// RelayConfig holds anti-bot relay configuration
type RelayConfig struct {
	Endpoint    string
	MaxTimeout  time.Duration
	Concurrency int64
	// SkipHosts are served by the direct CDN tier instead
	SkipHosts []string
}

type relayRequest struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url"`
	MaxTimeout int64  `json:"maxTimeout"`
	Download   bool   `json:"download"`
}

type relayReply struct {
	Status   string         `json:"status"`
	Message  string         `json:"message"`
	Solution *relaySolution `json:"solution"`
}

type relaySolution struct {
	URL      string         `json:"url"`
	Status   int            `json:"status"`
	Headers  map[string]any `json:"headers"`
	Response *string        `json:"response"`
}

// Relay fetches through a FlareSolverr-compatible challenge-solving service
type Relay struct {
	client     *http.Client
	classifier service.Classifier
	endpoint   string
	maxTimeout time.Duration
	skipHosts  []string
	sem        *semaphore.Weighted
}

// NewRelay creates the relay strategy
func NewRelay(config RelayConfig, classifier service.Classifier) *Relay {
	maxTimeout := config.MaxTimeout
	if maxTimeout <= 0 {
		maxTimeout = 60 * time.Second
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Relay{
		client:     &http.Client{Timeout: maxTimeout + 10*time.Second},
		classifier: classifier,
		endpoint:   config.Endpoint,
		maxTimeout: maxTimeout,
		skipHosts:  config.SkipHosts,
		sem:        semaphore.NewWeighted(concurrency),
	}
}

// Tier implements service.FetchStrategy
func (s *Relay) Tier() entity.Tier {
	return entity.TierRelay
}

// Applies reports whether the URL should go through the relay
func (s *Relay) Applies(rawURL string) bool {
	return s.endpoint != "" && !MatchesHost(s.skipHosts, rawURL)
}

// Fetch implements service.FetchStrategy
func (s *Relay) Fetch(ctx context.Context, target entity.Target, rawURL string, recorder service.AttemptRecorder) (*entity.Download, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, entity.NewFetchError(entity.KindTransport, s.Tier(), rawURL, err)
	}
	defer s.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, s.maxTimeout+10*time.Second)
	defer cancel()

	started := time.Now()
	a := attempt(target, s.Tier(), rawURL, 1)

	payload, ferr := s.solve(ctx, rawURL)
	if ferr != nil {
		finish(recorder, a, started, payload, ferr)
		return nil, ferr
	}

	download, ferr := accept(s.classifier, s.Tier(), payload)
	finish(recorder, a, started, payload, ferr)
	if ferr != nil {
		return nil, ferr
	}
	return download, nil
}

func (s *Relay) solve(ctx context.Context, rawURL string) (*entity.Payload, *entity.FetchError) {
	fail := func(kind entity.ErrorKind, err error) (*entity.Payload, *entity.FetchError) {
		return nil, entity.NewFetchError(kind, s.Tier(), rawURL, err)
	}

	body, err := json.Marshal(relayRequest{
		Cmd:        "request.get",
		URL:        rawURL,
		MaxTimeout: s.maxTimeout.Milliseconds(),
		Download:   true,
	})
	if err != nil {
		return fail(entity.KindTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fail(entity.KindTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fail(entity.KindTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(entity.KindTransport, fmt.Errorf("read relay reply: %w", err))
	}

	var reply relayReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return fail(entity.KindUnexpectedShape, fmt.Errorf("decode relay reply (HTTP %d): %w", resp.StatusCode, err))
	}

	if reply.Status != "ok" {
		msg := reply.Message
		if msg == "" {
			msg = "status " + quoteEmpty(reply.Status)
		}
		return fail(entity.KindProvider, errors.New("relay: "+msg))
	}

	if reply.Solution == nil {
		return fail(entity.KindUnexpectedShape, errors.New("relay reply without solution"))
	}
	if reply.Solution.Response == nil {
		return fail(entity.KindUnexpectedShape, errors.New("relay solution without response"))
	}

	decoded, err := base64.StdEncoding.DecodeString(*reply.Solution.Response)
	if err != nil {
		return fail(entity.KindUnexpectedShape, fmt.Errorf("decode relay body: %w", err))
	}

	status := reply.Solution.Status
	if status == 0 {
		status = http.StatusOK
	}

	return &entity.Payload{
		RequestedURL: rawURL,
		FinalURL:     reply.Solution.URL,
		StatusCode:   status,
		ContentType:  lookupHeader(reply.Solution.Headers, "Content-Type"),
		Body:         decoded,
	}, nil
}

func lookupHeader(headers map[string]any, name string) string {
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			if s, ok := value.(string); ok {
				return s
			}
		}
	}
	return ""
}

func quoteEmpty(s string) string {
	if s == "" {
		return `""`
	}
	return s
}
