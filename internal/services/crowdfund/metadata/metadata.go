// Package metadata renders share certificate metadata documents.
package metadata

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strconv"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/money"
)

const (
	jsonURIPrefix = "data:application/json;base64,"
	svgURIPrefix  = "data:image/svg+xml;base64,"
)

// CertificateView is everything a provider may render for one certificate.
type CertificateView struct {
	CampaignID       string
	CampaignName     string
	Category         string
	CertificateID    uint64
	Round            int
	Sequence         int
	Owner            string
	PurchasePriceNet money.Amount
	Burned           bool
	Customization    map[string]string
}

// Attribute is one display trait.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Document is the metadata JSON document.
type Document struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// Provider renders custom documents for a campaign.
type Provider interface {
	Document(ctx context.Context, view CertificateView) (Document, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, view CertificateView) (Document, error)

// Document implements Provider.
func (f ProviderFunc) Document(ctx context.Context, view CertificateView) (Document, error) {
	return f(ctx, view)
}

// TokenURI encodes the certificate document as a base64 JSON data URI. A nil
// provider yields the built-in document.
func TokenURI(ctx context.Context, provider Provider, view CertificateView) (string, error) {
	doc := Default(view)
	if provider != nil {
		custom, err := provider.Document(ctx, view)
		if err != nil {
			return "", fmt.Errorf("render metadata: %w", err)
		}
		doc = custom
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return jsonURIPrefix + base64.StdEncoding.EncodeToString(data), nil
}

// Default builds the deterministic fallback document.
func Default(view CertificateView) Document {
	name := fmt.Sprintf("%s #%d", view.CampaignName, view.CertificateID)
	attrs := []Attribute{
		{TraitType: "Campaign", Value: view.CampaignID},
		{TraitType: "Round", Value: strconv.Itoa(view.Round)},
		{TraitType: "Sequence", Value: strconv.Itoa(view.Sequence)},
		{TraitType: "Purchase Price", Value: view.PurchasePriceNet.String()},
	}
	if view.Category != "" {
		attrs = append(attrs, Attribute{TraitType: "Category", Value: view.Category})
	}
	keys := make([]string, 0, len(view.Customization))
	for k := range view.Customization {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, Attribute{TraitType: k, Value: view.Customization[k]})
	}
	return Document{
		Name:        name,
		Description: fmt.Sprintf("Share certificate %d of round %d in %s.", view.Sequence, view.Round, view.CampaignName),
		Image:       svgURIPrefix + base64.StdEncoding.EncodeToString([]byte(certificateSVG(view))),
		Attributes:  attrs,
	}
}

func certificateSVG(view CertificateView) string {
	background := "#1f3a5f"
	if color, ok := view.Customization["background"]; ok && isHexColor(color) {
		background = color
	}
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="400" height="240" viewBox="0 0 400 240">`+
		`<rect width="400" height="240" rx="16" fill="%s"/>`+
		`<text x="24" y="56" fill="#ffffff" font-family="sans-serif" font-size="22">%s</text>`+
		`<text x="24" y="110" fill="#ffffff" font-family="sans-serif" font-size="16">Round %d · Share %d</text>`+
		`<text x="24" y="150" fill="#ffffff" font-family="sans-serif" font-size="16">Certificate #%d</text>`+
		`<text x="24" y="200" fill="#d0d8e0" font-family="monospace" font-size="12">%s</text>`+
		`</svg>`,
		background,
		html.EscapeString(view.CampaignName),
		view.Round,
		view.Sequence,
		view.CertificateID,
		html.EscapeString(view.PurchasePriceNet.String()),
	)
}

func isHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, r := range s[1:] {
		if !('0' <= r && r <= '9' || 'a' <= r && r <= 'f' || 'A' <= r && r <= 'F') {
			return false
		}
	}
	return true
}
