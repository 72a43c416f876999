package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// envelope is the canonical hash input. Field order is fixed by the struct.
type envelope struct {
	CampaignID string          `json:"campaign_id"`
	Seq        uint64          `json:"seq"`
	Type       string          `json:"type"`
	Timestamp  int64           `json:"ts"`
	ActorID    string          `json:"actor_id"`
	RequestID  string          `json:"request_id"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Hash computes the content hash for a single event.
func Hash(evt Event) (string, error) {
	env := envelope{
		CampaignID: evt.CampaignID,
		Seq:        evt.Seq,
		Type:       string(evt.Type),
		Timestamp:  evt.Timestamp.UTC().UnixMilli(),
		ActorID:    evt.ActorID,
		RequestID:  evt.RequestID,
		EntityType: evt.EntityType,
		EntityID:   evt.EntityID,
	}
	if len(evt.PayloadJSON) > 0 {
		if !json.Valid(evt.PayloadJSON) {
			return "", fmt.Errorf("event payload is not valid json")
		}
		env.Payload = json.RawMessage(evt.PayloadJSON)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal event envelope: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ChainHash computes the hash that links an event to its predecessor.
func ChainHash(evt Event, prevHash string) (string, error) {
	hash := evt.Hash
	if hash == "" {
		var err error
		hash, err = Hash(evt)
		if err != nil {
			return "", err
		}
	}
	sum := sha256.Sum256([]byte(prevHash + ":" + hash))
	return hex.EncodeToString(sum[:]), nil
}
