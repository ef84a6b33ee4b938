// Package options builds the filter configuration sent to the pubproxy
// listing API. Options are opaque to the fetch coordinator; it only hands
// them to the request boundary.
package options

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/LovecraftianHorror/lead-oxide/pkg/proxy"
)

// Per-call record limits imposed by pubproxy.
const (
	// FreeLimit is the most records one keyless request yields.
	FreeLimit = 5

	// PremiumLimit is the most records one keyed request yields.
	PremiumLimit = 20
)

// countryAction selects between an allow and a block list.
type countryAction int

const (
	actionBlock countryAction = iota
	actionAllow
)

// Countries restricts results to, or excludes, a set of ISO 3166-1
// alpha-2 country codes. The API accepts exactly one of the two forms
// per request (country= vs not_country=).
type Countries struct {
	action countryAction
	codes  []string
}

// AllowCountries restricts results to the given country codes.
func AllowCountries(codes ...string) Countries {
	return Countries{action: actionAllow, codes: normalize(codes)}
}

// BlockCountries excludes the given country codes from results.
func BlockCountries(codes ...string) Countries {
	return Countries{action: actionBlock, codes: normalize(codes)}
}

// IsZero reports whether no country filter is set.
func (c Countries) IsZero() bool {
	return len(c.codes) == 0
}

// param returns the query parameter name and comma-joined value.
func (c Countries) param() (string, string) {
	if c.action == actionAllow {
		return "country", strings.Join(c.codes, ",")
	}
	return "not_country", strings.Join(c.codes, ",")
}

func normalize(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			out = append(out, code)
		}
	}
	return out
}

// Opts is one Fetcher's filter configuration. The zero value is valid and
// means "keyless, no filters". Build customized values with New.
type Opts struct {
	apiKey          string
	level           proxy.Level
	protocol        proxy.Protocol
	countries       Countries
	lastCheckedMins int
	port            int
	maxConnectSecs  int
	https           bool
	post            bool
	cookies         bool
	referer         bool
	userAgent       bool
	google          bool
}

// Builder assembles an Opts value.
type Builder struct {
	opts Opts
}

// New starts an options builder.
func New() *Builder {
	return &Builder{}
}

// APIKey sets the pubproxy API key. A keyed configuration is premium:
// larger batches and no request-interval coordination.
func (b *Builder) APIKey(key string) *Builder {
	b.opts.apiKey = key
	return b
}

// Level filters by anonymity level.
func (b *Builder) Level(level proxy.Level) *Builder {
	b.opts.level = level
	return b
}

// Protocol filters by proxy protocol.
func (b *Builder) Protocol(protocol proxy.Protocol) *Builder {
	b.opts.protocol = protocol
	return b
}

// Countries applies a country allow or block list.
func (b *Builder) Countries(c Countries) *Builder {
	b.opts.countries = c
	return b
}

// LastChecked keeps only proxies verified within the given number of
// minutes.
func (b *Builder) LastChecked(minutes int) *Builder {
	b.opts.lastCheckedMins = minutes
	return b
}

// Port keeps only proxies listening on the given port.
func (b *Builder) Port(port int) *Builder {
	b.opts.port = port
	return b
}

// MaxTimeToConnect keeps only proxies that connect within the given
// number of seconds.
func (b *Builder) MaxTimeToConnect(seconds int) *Builder {
	b.opts.maxConnectSecs = seconds
	return b
}

// HTTPS keeps only proxies supporting HTTPS.
func (b *Builder) HTTPS(v bool) *Builder { b.opts.https = v; return b }

// Post keeps only proxies supporting POST requests.
func (b *Builder) Post(v bool) *Builder { b.opts.post = v; return b }

// Cookies keeps only proxies supporting cookies.
func (b *Builder) Cookies(v bool) *Builder { b.opts.cookies = v; return b }

// Referer keeps only proxies forwarding the Referer header.
func (b *Builder) Referer(v bool) *Builder { b.opts.referer = v; return b }

// UserAgent keeps only proxies forwarding the User-Agent header.
func (b *Builder) UserAgent(v bool) *Builder { b.opts.userAgent = v; return b }

// Google keeps only proxies that can reach Google.
func (b *Builder) Google(v bool) *Builder { b.opts.google = v; return b }

// Build returns the assembled Opts.
func (b *Builder) Build() Opts {
	return b.opts
}

// IsPremium reports whether an API key is configured.
func (o Opts) IsPremium() bool {
	return o.apiKey != ""
}

// Limit is how many records one remote call yields for this
// configuration.
func (o Opts) Limit() int {
	if o.IsPremium() {
		return PremiumLimit
	}
	return FreeLimit
}

// Values encodes the configuration as the request query. The record
// limit and JSON format are always present; zero-valued filters are
// omitted.
func (o Opts) Values() url.Values {
	v := url.Values{}
	v.Set("format", "json")
	v.Set("limit", strconv.Itoa(o.Limit()))

	if o.apiKey != "" {
		v.Set("api", o.apiKey)
	}
	if o.level != "" {
		v.Set("level", string(o.level))
	}
	if o.protocol != "" {
		v.Set("type", string(o.protocol))
	}
	if !o.countries.IsZero() {
		key, val := o.countries.param()
		v.Set(key, val)
	}
	if o.lastCheckedMins > 0 {
		v.Set("last_check", strconv.Itoa(o.lastCheckedMins))
	}
	if o.port > 0 {
		v.Set("port", strconv.Itoa(o.port))
	}
	if o.maxConnectSecs > 0 {
		v.Set("speed", strconv.Itoa(o.maxConnectSecs))
	}
	setFlag(v, "https", o.https)
	setFlag(v, "post", o.post)
	setFlag(v, "cookies", o.cookies)
	setFlag(v, "referer", o.referer)
	setFlag(v, "user_agent", o.userAgent)
	setFlag(v, "google", o.google)

	return v
}

func setFlag(v url.Values, key string, set bool) {
	if set {
		v.Set(key, "true")
	}
}
