// Package proxy defines the proxy record returned by the pubproxy listing
// API and the decoding of its JSON envelope.
package proxy

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// lastCheckedLayout is the timestamp format pubproxy uses for the
// last_checked field.
const lastCheckedLayout = "2006-01-02 15:04:05"

// Level is the anonymity level of a proxy.
type Level string

const (
	// LevelAnonymous proxies hide the client address but identify
	// themselves as proxies.
	LevelAnonymous Level = "anonymous"

	// LevelElite proxies hide both the client address and the fact that a
	// proxy is in use.
	LevelElite Level = "elite"
)

// Protocol is the wire protocol a proxy speaks.
type Protocol string

const (
	ProtocolHTTP   Protocol = "http"
	ProtocolSocks4 Protocol = "socks4"
	ProtocolSocks5 Protocol = "socks5"
)

// Supports describes the feature flags pubproxy reports per proxy.
// The API encodes these as 0/1 integers.
type Supports struct {
	HTTPS             bool `json:"https"`
	Get               bool `json:"get"`
	Post              bool `json:"post"`
	Cookies           bool `json:"cookies"`
	Referer           bool `json:"referer"`
	ForwardsUserAgent bool `json:"user_agent"`
	ConnectsToGoogle  bool `json:"google"`
}

// UnmarshalJSON decodes the 0/1 flag object into booleans.
func (s *Supports) UnmarshalJSON(data []byte) error {
	var raw struct {
		HTTPS             flag `json:"https"`
		Get               flag `json:"get"`
		Post              flag `json:"post"`
		Cookies           flag `json:"cookies"`
		Referer           flag `json:"referer"`
		ForwardsUserAgent flag `json:"user_agent"`
		ConnectsToGoogle  flag `json:"google"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Supports{
		HTTPS:             bool(raw.HTTPS),
		Get:               bool(raw.Get),
		Post:              bool(raw.Post),
		Cookies:           bool(raw.Cookies),
		Referer:           bool(raw.Referer),
		ForwardsUserAgent: bool(raw.ForwardsUserAgent),
		ConnectsToGoogle:  bool(raw.ConnectsToGoogle),
	}
	return nil
}

// Proxy is one record from the listing service. The coordinator never
// inspects these fields; it only counts and moves records.
type Proxy struct {
	IP            string        `json:"ip"`
	Port          int           `json:"port"`
	Country       string        `json:"country"`
	LastChecked   time.Time     `json:"last_checked"`
	Level         Level         `json:"proxy_level"`
	Protocol      Protocol      `json:"type"`
	TimeToConnect time.Duration `json:"speed"`
	Supports      Supports      `json:"support"`
}

// Address returns the "ip:port" form of the proxy.
func (p Proxy) Address() string {
	return fmt.Sprintf("%s:%d", p.IP, p.Port)
}

// URL returns the full URL form, e.g. "socks5://1.2.3.4:1080".
func (p Proxy) URL() string {
	proto := p.Protocol
	if proto == "" {
		proto = ProtocolHTTP
	}
	return fmt.Sprintf("%s://%s:%d", proto, p.IP, p.Port)
}

// UnmarshalJSON handles the API's loose typing: port and speed arrive as
// either JSON strings or numbers, speed is in seconds, and last_checked
// uses a space-separated timestamp.
func (p *Proxy) UnmarshalJSON(data []byte) error {
	var raw struct {
		IP          string   `json:"ip"`
		Port        looseInt `json:"port"`
		Country     string   `json:"country"`
		LastChecked string   `json:"last_checked"`
		Level       Level    `json:"proxy_level"`
		Protocol    Protocol `json:"type"`
		Speed       looseInt `json:"speed"`
		Support     Supports `json:"support"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var checked time.Time
	if raw.LastChecked != "" {
		t, err := time.Parse(lastCheckedLayout, raw.LastChecked)
		if err != nil {
			return fmt.Errorf("parse last_checked %q: %w", raw.LastChecked, err)
		}
		checked = t
	}

	*p = Proxy{
		IP:            raw.IP,
		Port:          int(raw.Port),
		Country:       raw.Country,
		LastChecked:   checked,
		Level:         raw.Level,
		Protocol:      raw.Protocol,
		TimeToConnect: time.Duration(raw.Speed) * time.Second,
		Supports:      raw.Support,
	}
	return nil
}

// response is the envelope the API wraps records in.
type response struct {
	Data []Proxy `json:"data"`
}

// ParseResponse decodes a listing response body into records. An empty or
// missing data array decodes to an empty slice, not an error.
func ParseResponse(body []byte) ([]Proxy, error) {
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode listing response: %w", err)
	}
	return resp.Data, nil
}

// looseInt decodes a JSON number or a numeric string.
type looseInt int

func (l *looseInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*l = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("parse %q as integer: %w", s, err)
	}
	*l = looseInt(n)
	return nil
}

// flag decodes pubproxy's 0/1 booleans, tolerating string form.
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	switch s {
	case "1", "true":
		*f = true
	case "0", "false", "", "null":
		*f = false
	default:
		return fmt.Errorf("parse %q as flag", s)
	}
	return nil
}
