package money

import (
	"fmt"
	"strings"
)

// CampaignAccountPrefix namespaces campaign custody accounts.
const CampaignAccountPrefix = "campaign:"

// CampaignAccount returns the custody account id for a campaign.
func CampaignAccount(campaignID string) string {
	return CampaignAccountPrefix + strings.TrimSpace(campaignID)
}

// Transfer is one value movement committed together with campaign events.
type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount Amount `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

// Validate checks the transfer is well formed.
func (t Transfer) Validate() error {
	if strings.TrimSpace(t.From) == "" || strings.TrimSpace(t.To) == "" {
		return fmt.Errorf("transfer accounts are required")
	}
	if t.From == t.To {
		return fmt.Errorf("transfer from %s to itself", t.From)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive")
	}
	return nil
}

// NetChanges folds transfers into a per-account signed balance delta.
func NetChanges(transfers []Transfer) map[string]Amount {
	changes := make(map[string]Amount, len(transfers)*2)
	for _, t := range transfers {
		changes[t.From] -= t.Amount
		changes[t.To] += t.Amount
	}
	return changes
}
