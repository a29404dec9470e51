package safe

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"
)

type fakeResolver map[string][]string

func (f fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	addrs, ok := f[host]
	if !ok {
		return nil, errors.New("no such host")
	}
	return addrs, nil
}

func TestValidateURL(t *testing.T) {
	r := fakeResolver{
		"example.com":  {"93.184.215.14"},
		"intranet.lan": {"10.1.2.3"},
		"mixed.test":   {"93.184.215.14", "192.168.1.1"},
	}
	tests := []struct {
		url  string
		want error
	}{
		{"https://example.com/page", nil},
		{"http://93.184.215.14/", nil},
		{"http://127.0.0.1:8080/", ErrSSRF},
		{"http://[::1]/", ErrSSRF},
		{"http://[::ffff:10.0.0.1]/", ErrSSRF},
		{"http://169.254.169.254/latest/meta-data", ErrSSRF},
		{"http://localhost/", ErrSSRF},
		{"http://intranet.lan/", ErrSSRF},
		{"http://mixed.test/", ErrSSRF},
		{"http://unresolvable.test/", nil},
		{"file:///etc/passwd", ErrUnsafeScheme},
		{"javascript:alert(1)", ErrUnsafeScheme},
	}
	for _, tt := range tests {
		err := ValidateURLWith(context.Background(), r, tt.url)
		if tt.want == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tt.url, err)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.url, err, tt.want)
		}
	}
	if err := ValidateURLWith(context.Background(), r, "http:///nohost"); err == nil {
		t.Fatal("expected error for URL without host")
	}
}

func TestIsPrivate(t *testing.T) {
	for _, s := range []string{"10.0.0.1", "172.20.0.1", "192.168.0.10", "100.64.0.1", "fd00::1", "0.0.0.0"} {
		if !IsPrivate(netip.MustParseAddr(s)) {
			t.Errorf("%s should be private", s)
		}
	}
	for _, s := range []string{"8.8.8.8", "172.32.0.1", "2001:4860:4860::8888"} {
		if IsPrivate(netip.MustParseAddr(s)) {
			t.Errorf("%s should be public", s)
		}
	}
}

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"doc", "page-1", "a.b_c", strings.Repeat("x", MaxIdentifierLen)} {
		if err := ValidateIdentifier(ok); err != nil {
			t.Errorf("%q: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "a/b", "../x", "sp ace", "é", strings.Repeat("x", MaxIdentifierLen+1)} {
		if err := ValidateIdentifier(bad); !errors.Is(err, ErrIdentifier) {
			t.Errorf("%q: expected ErrIdentifier, got %v", bad, err)
		}
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("at limit: %q %v", data, err)
	}
	if _, err := LimitedReadAll(strings.NewReader("hello!"), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: %v", err)
	}
}
