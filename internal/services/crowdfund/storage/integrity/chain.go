package integrity

import (
	"fmt"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
)

// Seal assigns seq, hash, chain link and signature to a batch of events that
// follow prevSeq/prevChainHash. A nil keyring leaves events unsigned.
func Seal(keyring *Keyring, events []event.Event, prevSeq uint64, prevChainHash string) ([]event.Event, error) {
	sealed := make([]event.Event, 0, len(events))
	for _, evt := range events {
		prevSeq++
		evt.Seq = prevSeq
		hash, err := event.Hash(evt)
		if err != nil {
			return nil, fmt.Errorf("compute event hash: %w", err)
		}
		evt.Hash = hash
		chainHash, err := event.ChainHash(evt, prevChainHash)
		if err != nil {
			return nil, fmt.Errorf("compute chain hash: %w", err)
		}
		evt.PrevHash = prevChainHash
		evt.ChainHash = chainHash
		if keyring != nil {
			evt.Signature, evt.SignatureKeyID, err = keyring.SignChainHash(evt.CampaignID, chainHash)
			if err != nil {
				return nil, fmt.Errorf("sign chain hash: %w", err)
			}
		}
		prevChainHash = chainHash
		sealed = append(sealed, evt)
	}
	return sealed, nil
}

// VerifyChain recomputes hashes over a campaign's journal from seq 1 and
// checks every link and, when keyring is set, every signature.
func VerifyChain(keyring *Keyring, events []event.Event) error {
	prev := ""
	for i, evt := range events {
		if evt.Seq != uint64(i+1) {
			return fmt.Errorf("event %d: seq = %d, want %d", i, evt.Seq, i+1)
		}
		hash, err := event.Hash(evt)
		if err != nil {
			return fmt.Errorf("event %d: %w", evt.Seq, err)
		}
		if hash != evt.Hash {
			return fmt.Errorf("event %d: content hash mismatch", evt.Seq)
		}
		if evt.PrevHash != prev {
			return fmt.Errorf("event %d: previous hash mismatch", evt.Seq)
		}
		chainHash, err := event.ChainHash(evt, prev)
		if err != nil {
			return fmt.Errorf("event %d: %w", evt.Seq, err)
		}
		if chainHash != evt.ChainHash {
			return fmt.Errorf("event %d: chain hash mismatch", evt.Seq)
		}
		if keyring != nil {
			if err := keyring.VerifyChainHash(evt.CampaignID, chainHash, evt.Signature, evt.SignatureKeyID); err != nil {
				return fmt.Errorf("event %d: %w", evt.Seq, err)
			}
		}
		prev = chainHash
	}
	return nil
}
