package classifier

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// challengeMarkers map lower-cased body substrings to the indicator they reveal
var challengeMarkers = []struct {
	marker    string
	indicator string
}{
	{"cf-browser-verification", "cloudflare-browser-verification"},
	{"challenge-form", "cloudflare-challenge-form"},
	{"cf-chl-", "cloudflare-challenge-token"},
	{"/cdn-cgi/challenge-platform/", "cloudflare-challenge-script"},
	{"just a moment", "cloudflare-interstitial"},
	{"attention required", "cloudflare-bic"},
	{"checking your browser", "browser-check"},
	{"verify you are human", "human-verification"},
	{"cf-turnstile", "turnstile"},
	{"captcha", "captcha"},
}

// Challenge summarizes an HTML page returned where an image was expected
type Challenge struct {
	Title        string
	MetaRefresh  string
	Indicators   []string
	IsChallenged bool
}

// String renders the challenge for the attempt log
func (c Challenge) String() string {
	var parts []string
	if c.Title != "" {
		parts = append(parts, "title="+c.Title)
	}
	if c.MetaRefresh != "" {
		parts = append(parts, "refresh="+c.MetaRefresh)
	}
	if len(c.Indicators) > 0 {
		parts = append(parts, "indicators="+strings.Join(c.Indicators, ","))
	}
	return strings.Join(parts, " ")
}

// DescribeChallenge extracts the title and anti-bot indicators of an HTML body
func DescribeChallenge(body []byte) Challenge {
	var challenge Challenge

	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		challenge.Title = strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
		doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if equiv, _ := s.Attr("http-equiv"); strings.EqualFold(equiv, "refresh") {
				challenge.MetaRefresh, _ = s.Attr("content")
				return false
			}
			return true
		})
	}

	lower := strings.ToLower(string(body))
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m.marker) {
			challenge.Indicators = append(challenge.Indicators, m.indicator)
		}
	}
	if challenge.MetaRefresh != "" {
		challenge.Indicators = append(challenge.Indicators, "meta-refresh")
	}
	challenge.IsChallenged = len(challenge.Indicators) > 0

	return challenge
}
