package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/WangYihang/Logo-Harvester/pkg/domain/entity"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// hideWebdriver runs before any page script
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// ErrNoDocument is returned when navigation finished without a main document response
var ErrNoDocument = errors.New("no document response captured")

// Config holds headless browser configuration
type Config struct {
	ExecPath          string
	Headless          bool
	NavigationTimeout time.Duration
}

// Navigator implements service.Navigator with chromedp. Every call starts a
// fresh browser process so each attempt gets its own proxy and profile.
type Navigator struct {
	config Config
	log    logrus.FieldLogger
}

// NewNavigator creates a chromedp navigator
func NewNavigator(config Config, log logrus.FieldLogger) *Navigator {
	if config.NavigationTimeout <= 0 {
		config.NavigationTimeout = 20 * time.Second
	}
	return &Navigator{config: config, log: log}
}

func (n *Navigator) allocatorOptions(proxy *entity.Proxy, userAgent string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.Flag("headless", n.config.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("ignore-certificate-errors", true),
	)
	if n.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(n.config.ExecPath))
	}
	if proxy != nil {
		opts = append(opts, chromedp.ProxyServer(proxyServer(proxy.Server)))
	}
	return opts
}

// proxyServer strips inline credentials, which Chrome does not accept on
// the command line
func proxyServer(server string) string {
	scheme := ""
	rest := server
	if i := strings.Index(server, "://"); i >= 0 {
		scheme, rest = server[:i+3], server[i+3:]
	}
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest = rest[i+1:]
	}
	return scheme + strings.TrimSuffix(rest, "/")
}

// document collects the main document response as events arrive
type document struct {
	mu        sync.Mutex
	requestID network.RequestID
	response  *network.Response
}

func (d *document) capture(ev *network.EventResponseReceived) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.response == nil && ev.Type == network.ResourceTypeDocument {
		d.requestID = ev.RequestID
		d.response = ev.Response
	}
}

func (d *document) get() (network.RequestID, *network.Response) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requestID, d.response
}

// Navigate loads url in a new headless browser and returns the main document
func (n *Navigator) Navigate(ctx context.Context, url string, proxy *entity.Proxy, userAgent string) (*entity.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, n.config.NavigationTimeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, n.allocatorOptions(proxy, userAgent)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	defer cancelBrowser()

	doc := &document{}
	chromedp.ListenTarget(browserCtx, func(ev any) {
		switch ev := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				c := chromedp.FromContext(browserCtx)
				if err := fetch.ContinueRequest(ev.RequestID).Do(cdp.WithExecutor(browserCtx, c.Target)); err != nil {
					n.log.WithError(err).Debug("continue request failed")
				}
			}()
		case *fetch.EventAuthRequired:
			go func() {
				c := chromedp.FromContext(browserCtx)
				resp := &fetch.AuthChallengeResponse{Response: fetch.AuthChallengeResponseResponseCancelAuth}
				if proxy != nil && ev.AuthChallenge != nil && ev.AuthChallenge.Source == fetch.AuthChallengeSourceProxy {
					resp = &fetch.AuthChallengeResponse{
						Response: fetch.AuthChallengeResponseResponseProvideCredentials,
						Username: proxy.Username,
						Password: proxy.Password,
					}
				}
				if err := fetch.ContinueWithAuth(ev.RequestID, resp).Do(cdp.WithExecutor(browserCtx, c.Target)); err != nil {
					n.log.WithError(err).Debug("continue with auth failed")
				}
			}()
		case *network.EventResponseReceived:
			doc.capture(ev)
		}
	})

	var finalURL string
	var body []byte
	err := chromedp.Run(browserCtx,
		network.Enable(),
		fetch.Enable().WithHandleAuthRequests(true),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
			return err
		}),
		chromedp.Navigate(url),
		chromedp.Location(&finalURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			requestID, response := doc.get()
			if response == nil {
				return ErrNoDocument
			}
			data, err := network.GetResponseBody(requestID).Do(ctx)
			if err != nil {
				return fmt.Errorf("get response body: %w", err)
			}
			body = data
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	_, response := doc.get()
	payload := &entity.Payload{
		RequestedURL: url,
		FinalURL:     finalURL,
		StatusCode:   int(response.Status),
		ContentType:  response.MimeType,
		Body:         body,
	}
	if ct := headerValue(response.Headers, "Content-Type"); ct != "" {
		payload.ContentType = ct
	}
	return payload, nil
}

func headerValue(headers network.Headers, name string) string {
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			if s, ok := value.(string); ok {
				return s
			}
		}
	}
	return ""
}
