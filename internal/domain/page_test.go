package domain_test

import (
	"testing"

	"github.com/jonesrussell/pageindexer/internal/domain"
)

func TestEnginesForMethod(t *testing.T) {
	tests := []struct {
		method string
		want   []string
	}{
		{domain.MethodGoogle, []string{domain.EngineGoogle}},
		{domain.MethodIndexNow, []string{domain.EngineIndexNow}},
		{domain.MethodBoth, []string{domain.EngineGoogle, domain.EngineIndexNow}},
		{"", []string{domain.EngineGoogle, domain.EngineIndexNow}},
	}
	for _, tt := range tests {
		page := &domain.Page{IndexingMethod: tt.method}
		got := page.Engines()
		if len(got) != len(tt.want) {
			t.Errorf("Engines(%q) = %v, want %v", tt.method, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Engines(%q) = %v, want %v", tt.method, got, tt.want)
				break
			}
		}
	}
}

func TestValidMethod(t *testing.T) {
	for _, m := range []string{domain.MethodGoogle, domain.MethodIndexNow, domain.MethodBoth} {
		if !domain.ValidMethod(m) {
			t.Errorf("ValidMethod(%q) = false", m)
		}
	}
	for _, m := range []string{"", "bing", "GOOGLE"} {
		if domain.ValidMethod(m) {
			t.Errorf("ValidMethod(%q) = true", m)
		}
	}
}

func TestKnownEngine(t *testing.T) {
	if !domain.KnownEngine(domain.EngineGoogle) || !domain.KnownEngine(domain.EngineIndexNow) {
		t.Error("built-in engines should be known")
	}
	if domain.KnownEngine("altavista") {
		t.Error("KnownEngine(altavista) = true")
	}
}

func TestPageStatusPredicates(t *testing.T) {
	page := &domain.Page{IndexingStatus: domain.PageStatusPending}
	if !page.IsPending() || page.IsIndexed() || page.HasFailed() {
		t.Error("pending page predicates wrong")
	}
	page.IndexingStatus = domain.PageStatusIndexed
	if !page.IsIndexed() || page.IsPending() {
		t.Error("indexed page predicates wrong")
	}
	page.IndexingStatus = domain.PageStatusFailed
	if !page.HasFailed() {
		t.Error("failed page predicates wrong")
	}
}

func TestHasIndexNowKey(t *testing.T) {
	site := &domain.Site{}
	if site.HasIndexNowKey() {
		t.Error("site without key reports a key")
	}
	empty := ""
	site.IndexNowKey = &empty
	if site.HasIndexNowKey() {
		t.Error("empty key should count as absent")
	}
	key := "abc123"
	site.IndexNowKey = &key
	if !site.HasIndexNowKey() {
		t.Error("site with key reports no key")
	}
}

func TestJSONBMapScan(t *testing.T) {
	var m domain.JSONBMap
	if err := m.Scan([]byte(`{"source":"sitemap","priority":0.8}`)); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if m["source"] != "sitemap" {
		t.Errorf("source = %v", m["source"])
	}

	if err := m.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if m != nil {
		t.Errorf("Scan(nil) left %v, want nil map", m)
	}

	if err := m.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}

func TestJSONBMapValueEmpty(t *testing.T) {
	var m domain.JSONBMap
	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if string(v.([]byte)) != "{}" {
		t.Errorf("empty map Value = %s, want {}", v)
	}
}
