package metadata

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
)

func testView() CertificateView {
	return CertificateView{
		CampaignID:       "c1",
		CampaignName:     "Solar <Co-op>",
		Category:         "energy",
		CertificateID:    11,
		Round:            2,
		Sequence:         1,
		Owner:            "alice",
		PurchasePriceNet: money.MustParse("0.176"),
		Customization:    map[string]string{"background": "#112233", "tier": "gold"},
	}
}

func decodeURI(t *testing.T, uri string) Document {
	t.Helper()
	if !strings.HasPrefix(uri, jsonURIPrefix) {
		t.Fatalf("uri = %q, want json data uri", uri)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, jsonURIPrefix))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	return doc
}

func TestTokenURIFallback(t *testing.T) {
	uri, err := TokenURI(context.Background(), nil, testView())
	if err != nil {
		t.Fatalf("token uri: %v", err)
	}
	doc := decodeURI(t, uri)
	if doc.Name != "Solar <Co-op> #11" {
		t.Fatalf("name = %q", doc.Name)
	}
	if !strings.HasPrefix(doc.Image, svgURIPrefix) {
		t.Fatalf("image = %q, want svg data uri", doc.Image)
	}
	svg, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(doc.Image, svgURIPrefix))
	if err != nil {
		t.Fatalf("decode svg: %v", err)
	}
	if !strings.Contains(string(svg), "Solar &lt;Co-op&gt;") {
		t.Fatalf("svg does not escape the campaign name: %s", svg)
	}
	if !strings.Contains(string(svg), `fill="#112233"`) {
		t.Fatalf("svg ignores the background customization: %s", svg)
	}
	last := doc.Attributes[len(doc.Attributes)-1]
	if last.TraitType != "tier" || last.Value != "gold" {
		t.Fatalf("last attribute = %+v, want tier=gold", last)
	}
}

func TestTokenURIDeterministic(t *testing.T) {
	a, _ := TokenURI(context.Background(), nil, testView())
	b, _ := TokenURI(context.Background(), nil, testView())
	if a != b {
		t.Fatal("expected identical token uris")
	}
}

func TestTokenURIProvider(t *testing.T) {
	provider := ProviderFunc(func(_ context.Context, view CertificateView) (Document, error) {
		return Document{Name: "custom " + view.Owner}, nil
	})
	uri, err := TokenURI(context.Background(), provider, testView())
	if err != nil {
		t.Fatalf("token uri: %v", err)
	}
	if got := decodeURI(t, uri).Name; got != "custom alice" {
		t.Fatalf("name = %q, want custom alice", got)
	}

	failing := ProviderFunc(func(context.Context, CertificateView) (Document, error) {
		return Document{}, errors.New("boom")
	})
	if _, err := TokenURI(context.Background(), failing, testView()); err == nil {
		t.Fatal("expected provider error")
	}
}

func TestInvalidBackgroundIgnored(t *testing.T) {
	view := testView()
	view.Customization = map[string]string{"background": `"/><script>`}
	svg := certificateSVG(view)
	if strings.Contains(svg, "<script>") {
		t.Fatal("svg contains injected markup")
	}
}
