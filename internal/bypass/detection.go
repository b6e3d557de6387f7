// Package bypass recognizes bot-protection challenges in search-provider
// responses so a challenge page is reported as an upstream failure instead
// of being parsed as an empty result list.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Page is the part of an HTTP response the detectors inspect.
type Page struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether page is a challenge and which system served it.
type Detector func(page *Page) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectDuckDuckGo,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Detect runs page through detectors and returns the first source that fires.
func Detect(page *Page, detectors []Detector) (source string, blocked bool) {
	if page == nil {
		return "", false
	}
	for _, d := range detectors {
		if detected, src := d(page); detected {
			return src, true
		}
	}
	return "", false
}

func server(page *Page) string {
	return strings.ToLower(page.Header.Get("Server"))
}

func bodyHasAny(body []byte, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(body, []byte(n)) {
			return true
		}
	}
	return false
}

// detectDuckDuckGo spots the anomaly page DuckDuckGo serves to suspected
// bots. It arrives with 200 or 202, so status alone is not enough.
func detectDuckDuckGo(page *Page) (bool, string) {
	if bodyHasAny(page.Body, "anomaly-modal", "Unfortunately, bots use DuckDuckGo too", "challenge-form") {
		return true, "DuckDuckGo"
	}
	return false, ""
}

func detectCloudflare(page *Page) (bool, string) {
	if page.StatusCode != http.StatusForbidden && page.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(server(page), "cloudflare") ||
		bodyHasAny(page.Body, "cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare") {
		return true, "Cloudflare"
	}
	return false, ""
}

func detectAkamai(page *Page) (bool, string) {
	if page.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(page), "akamai") {
		return true, "Akamai"
	}
	// generic "Reference #" block page
	if bodyHasAny(page.Body, "Reference #") && bodyHasAny(page.Body, "Access Denied") {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(page *Page) (bool, string) {
	if page.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(page), "datadome") ||
		page.Header.Get("X-DataDome") != "" || page.Header.Get("X-DataDome-Response") != "" ||
		bodyHasAny(page.Body, "geo.captcha-delivery.com", "datadome") {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(page *Page) (bool, string) {
	if page.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if page.Header.Get("X-Px-Captcha") != "" ||
		bodyHasAny(page.Body, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return true, "PerimeterX"
	}
	return false, ""
}
