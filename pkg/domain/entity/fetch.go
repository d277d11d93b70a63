package entity

// Tier identifies a fetch strategy
type Tier string

const (
	TierKnownCDN           Tier = "known_cdn"
	TierRelay              Tier = "relay"
	TierBrowser            Tier = "browser"
	TierPrimaryDirectory   Tier = "primary_directory"
	TierSecondaryDirectory Tier = "secondary_directory"
)

// Tiers lists every tier in escalation order
var Tiers = []Tier{
	TierKnownCDN,
	TierRelay,
	TierBrowser,
	TierPrimaryDirectory,
	TierSecondaryDirectory,
}

// Verdict is the classifier decision for a response
type Verdict string

const (
	VerdictImage      Verdict = "image"
	VerdictNotImage   Verdict = "not_image"
	VerdictRedirected Verdict = "redirected"
)

// Classification is the result of classifying one response
type Classification struct {
	Verdict   Verdict
	Extension string
	Reason    string
}

// IsImage reports whether the response was accepted as an image
func (c Classification) IsImage() bool {
	return c.Verdict == VerdictImage
}

// Payload is the raw outcome of one fetch before classification
type Payload struct {
	RequestedURL string
	FinalURL     string
	StatusCode   int
	ContentType  string
	Body         []byte
}

// Download is an accepted image waiting to be persisted
type Download struct {
	URL       string
	Tier      Tier
	Extension string
	Body      []byte
}

// Proxy is an egress proxy tagged with its country
type Proxy struct {
	Server   string `json:"server" toml:"server"`
	Username string `json:"username" toml:"username"`
	Password string `json:"password" toml:"password"`
	Country  string `json:"country" toml:"country"`
}
