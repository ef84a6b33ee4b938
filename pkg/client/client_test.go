package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/LovecraftianHorror/lead-oxide/internal/testutil"
	"github.com/LovecraftianHorror/lead-oxide/pkg/options"
)

func newTestClient(t *testing.T) (*Client, *testutil.MockPubProxy) {
	t.Helper()

	mock := testutil.NewMockPubProxy()
	t.Cleanup(mock.Close)

	c := New(Config{
		BaseURL:   mock.URL(),
		UserAgent: "lead-oxide-test/0.0.0",
		Timeout:   5 * time.Second,
	})
	return c, mock
}

func TestFetchBatch(t *testing.T) {
	c, mock := newTestClient(t)

	proxies, err := c.FetchBatch(context.Background(), options.Opts{})
	if err != nil {
		t.Fatalf("FetchBatch() error = %v", err)
	}
	if len(proxies) != options.FreeLimit {
		t.Errorf("len(proxies) = %d, want %d", len(proxies), options.FreeLimit)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("RequestCount() = %d, want 1", mock.RequestCount())
	}

	query := mock.LastQuery()
	if got := query["limit"]; len(got) != 1 || got[0] != "5" {
		t.Errorf("limit query = %v, want [5]", got)
	}
	if got := query["format"]; len(got) != 1 || got[0] != "json" {
		t.Errorf("format query = %v, want [json]", got)
	}
}

func TestFetchBatch_PremiumLimit(t *testing.T) {
	c, mock := newTestClient(t)

	opts := options.New().APIKey("<key>").Build()
	proxies, err := c.FetchBatch(context.Background(), opts)
	if err != nil {
		t.Fatalf("FetchBatch() error = %v", err)
	}
	if len(proxies) != options.PremiumLimit {
		t.Errorf("len(proxies) = %d, want %d", len(proxies), options.PremiumLimit)
	}
	if got := mock.LastQuery()["api"]; len(got) != 1 || got[0] != "<key>" {
		t.Errorf("api query = %v, want [<key>]", got)
	}
}

func TestFetchBatch_StatusError(t *testing.T) {
	c, mock := newTestClient(t)
	mock.SetResponse(&testutil.MockResponse{
		StatusCode: http.StatusBadGateway,
		Body:       "upstream exploded",
	})

	_, err := c.FetchBatch(context.Background(), options.Opts{})
	if err == nil {
		t.Fatal("FetchBatch() error = nil, want status error")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error %T is not *FetchError", err)
	}
	if fetchErr.Kind != KindStatus {
		t.Errorf("Kind = %q, want %q", fetchErr.Kind, KindStatus)
	}
	if fetchErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want %d", fetchErr.StatusCode, http.StatusBadGateway)
	}
	if fetchErr.Body != "upstream exploded" {
		t.Errorf("Body = %q, want the response body", fetchErr.Body)
	}
}

func TestFetchBatch_PayloadError(t *testing.T) {
	c, mock := newTestClient(t)
	// pubproxy reports throttling as plain text with status 200.
	mock.SetResponse(&testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       "We have to temporarily block you, too many requests",
	})

	_, err := c.FetchBatch(context.Background(), options.Opts{})

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error %T is not *FetchError", err)
	}
	if fetchErr.Kind != KindPayload {
		t.Errorf("Kind = %q, want %q", fetchErr.Kind, KindPayload)
	}
}

func TestFetchBatch_NetworkError(t *testing.T) {
	mock := testutil.NewMockPubProxy()
	c := New(Config{BaseURL: mock.URL(), Timeout: time.Second})
	mock.Close() // connection refused from here on

	_, err := c.FetchBatch(context.Background(), options.Opts{})

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error %T is not *FetchError", err)
	}
	if fetchErr.Kind != KindNetwork {
		t.Errorf("Kind = %q, want %q", fetchErr.Kind, KindNetwork)
	}
	if fetchErr.Unwrap() == nil {
		t.Error("network FetchError should wrap the transport error")
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{})

	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
	}
	if c.userAgent == "" {
		t.Error("userAgent should have a default")
	}
	if c.httpClient.Timeout != 30*time.Second {
		t.Errorf("timeout = %v, want 30s", c.httpClient.Timeout)
	}
}

func TestFetchErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  *FetchError
		want string
	}{
		{
			name: "status with body",
			err:  &FetchError{Kind: KindStatus, StatusCode: 502, Body: "bad gateway"},
			want: "pubproxy status error (status 502): bad gateway",
		},
		{
			name: "network with cause",
			err:  &FetchError{Kind: KindNetwork, Err: errors.New("dial tcp: refused")},
			want: "pubproxy network error: dial tcp: refused",
		},
		{
			name: "payload with cause and status",
			err:  &FetchError{Kind: KindPayload, StatusCode: 200, Err: errors.New("decode listing response: bad json")},
			want: "pubproxy payload error (status 200): decode listing response: bad json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
