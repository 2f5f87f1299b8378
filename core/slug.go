package core

import (
	"net"
	"net/url"
	"strings"

	"github.com/gosimple/slug"
	"golang.org/x/net/publicsuffix"
)

// DefaultSlug is used when no better name can be derived from a URL.
const DefaultSlug = "screenshot"

// SlugFromURL derives a short file-name prefix from the registrable domain of a URL,
// e.g. “https://www.example.co.uk/calendar” → “example”.
// Hosts without a public suffix (IP addresses, “localhost”) are slugified as-is.
func SlugFromURL(rawUrl string) string {
	u, err := url.Parse(rawUrl)
	if err != nil || u.Hostname() == "" {
		return DefaultSlug
	}
	host := strings.ToLower(u.Hostname())

	name := host
	if net.ParseIP(host) == nil {
		if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			suffix, _ := publicsuffix.PublicSuffix(domain)
			name = strings.TrimSuffix(domain, "."+suffix)
		}
	}

	if s := slug.Make(name); s != "" {
		return s
	}
	return DefaultSlug
}
