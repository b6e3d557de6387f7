package bypass

import (
	"net/http"
	"testing"
)

func page(status int, header map[string]string, body string) *Page {
	h := http.Header{}
	for k, v := range header {
		h.Set(k, v)
	}
	return &Page{StatusCode: status, Header: h, Body: []byte(body)}
}

func TestDetectors(t *testing.T) {
	cases := []struct {
		name   string
		page   *Page
		source string
	}{
		{"ddg anomaly", page(202, nil, `<div class="anomaly-modal__title">`), "DuckDuckGo"},
		{"ddg bots text", page(200, nil, "Unfortunately, bots use DuckDuckGo too."), "DuckDuckGo"},
		{"cloudflare header", page(403, map[string]string{"Server": "cloudflare"}, "Access Denied"), "Cloudflare"},
		{"cloudflare body", page(503, nil, "<html>... cf-turnstile ...</html>"), "Cloudflare"},
		{"akamai header", page(403, map[string]string{"Server": "AkamaiGHost"}, ""), "Akamai"},
		{"akamai body", page(403, nil, "Access Denied... Reference #123.456"), "Akamai"},
		{"datadome header", page(403, map[string]string{"X-DataDome": "1"}, ""), "DataDome"},
		{"datadome body", page(403, nil, "script src='https://geo.captcha-delivery.com/...'"), "DataDome"},
		{"perimeterx header", page(403, map[string]string{"X-Px-Captcha": "required"}, ""), "PerimeterX"},
		{"perimeterx body", page(403, nil, "window._pxBlock = true;"), "PerimeterX"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src, blocked := Detect(c.page, DefaultDetectors())
			if !blocked || src != c.source {
				t.Errorf("expected %s, got %q (blocked=%v)", c.source, src, blocked)
			}
		})
	}
}

func TestDetect_CleanPages(t *testing.T) {
	clean := []*Page{
		page(200, map[string]string{"Server": "nginx"}, `<div class="result">ok</div>`),
		page(200, map[string]string{"Server": "cloudflare"}, "served through cloudflare but fine"),
		page(404, nil, "Access Denied"),
		nil,
	}
	for i, p := range clean {
		if src, blocked := Detect(p, DefaultDetectors()); blocked {
			t.Errorf("page %d: unexpected detection %s", i, src)
		}
	}
}
