package proxy

import (
	"testing"
	"time"
)

// sampleBody mirrors the shape the live service sends: string port and
// speed, 0/1 support flags.
const sampleBody = `{
  "data": [
    {
      "ipPort": "179.108.153.132:8080",
      "ip": "179.108.153.132",
      "port": "8080",
      "country": "BR",
      "last_checked": "2020-01-25 22:41:52",
      "proxy_level": "elite",
      "type": "http",
      "speed": "5",
      "support": {
        "https": 1,
        "get": 1,
        "post": 1,
        "cookies": 1,
        "referer": 1,
        "user_agent": 1,
        "google": 0
      }
    },
    {
      "ip": "91.217.42.2",
      "port": 8080,
      "country": "RU",
      "last_checked": "2020-01-25 21:17:09",
      "proxy_level": "anonymous",
      "type": "socks5",
      "speed": 21,
      "support": {
        "https": 0,
        "get": 0,
        "post": 0,
        "cookies": 0,
        "referer": 0,
        "user_agent": 0,
        "google": 0
      }
    }
  ],
  "count": 2
}`

func TestParseResponse(t *testing.T) {
	proxies, err := ParseResponse([]byte(sampleBody))
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if len(proxies) != 2 {
		t.Fatalf("len(proxies) = %d, want 2", len(proxies))
	}

	first := proxies[0]
	if first.Address() != "179.108.153.132:8080" {
		t.Errorf("Address() = %q, want %q", first.Address(), "179.108.153.132:8080")
	}
	if first.Country != "BR" {
		t.Errorf("Country = %q, want BR", first.Country)
	}
	if first.Level != LevelElite {
		t.Errorf("Level = %q, want elite", first.Level)
	}
	if first.Protocol != ProtocolHTTP {
		t.Errorf("Protocol = %q, want http", first.Protocol)
	}
	if first.TimeToConnect != 5*time.Second {
		t.Errorf("TimeToConnect = %v, want 5s", first.TimeToConnect)
	}
	wantChecked := time.Date(2020, 1, 25, 22, 41, 52, 0, time.UTC)
	if !first.LastChecked.Equal(wantChecked) {
		t.Errorf("LastChecked = %v, want %v", first.LastChecked, wantChecked)
	}
	if !first.Supports.HTTPS || !first.Supports.ForwardsUserAgent {
		t.Errorf("Supports = %+v, want https and user_agent set", first.Supports)
	}
	if first.Supports.ConnectsToGoogle {
		t.Error("Supports.ConnectsToGoogle = true, want false")
	}

	// Second record uses numeric port and speed.
	second := proxies[1]
	if second.Port != 8080 {
		t.Errorf("Port = %d, want 8080", second.Port)
	}
	if second.Protocol != ProtocolSocks5 {
		t.Errorf("Protocol = %q, want socks5", second.Protocol)
	}
	if second.TimeToConnect != 21*time.Second {
		t.Errorf("TimeToConnect = %v, want 21s", second.TimeToConnect)
	}
}

func TestParseResponse_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "plain text throttle message",
			body: "We have to temporarily block you, too many requests",
		},
		{
			name: "truncated json",
			body: `{"data":[{"ip":"1.2.3.4"`,
		},
		{
			name: "bad timestamp",
			body: `{"data":[{"ip":"1.2.3.4","port":"80","last_checked":"soon"}]}`,
		},
		{
			name: "bad flag",
			body: `{"data":[{"ip":"1.2.3.4","port":"80","support":{"https":"maybe"}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseResponse([]byte(tt.body)); err == nil {
				t.Error("ParseResponse() error = nil, want error")
			}
		})
	}
}

func TestParseResponse_Empty(t *testing.T) {
	proxies, err := ParseResponse([]byte(`{"data":[],"count":0}`))
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if len(proxies) != 0 {
		t.Errorf("len(proxies) = %d, want 0", len(proxies))
	}
}

func TestProxyURL(t *testing.T) {
	tests := []struct {
		name  string
		proxy Proxy
		want  string
	}{
		{
			name:  "socks5",
			proxy: Proxy{IP: "1.2.3.4", Port: 1080, Protocol: ProtocolSocks5},
			want:  "socks5://1.2.3.4:1080",
		},
		{
			name:  "defaults to http",
			proxy: Proxy{IP: "1.2.3.4", Port: 8080},
			want:  "http://1.2.3.4:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.proxy.URL(); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}
