package claimstore

import (
	"encoding/json"
	"fmt"

	"github.com/arloliu/credshare/types"
)

func encodeClaim(c types.Claim) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode claim: %w", err)
	}

	return data, nil
}

func decodeClaim(data []byte) (types.Claim, error) {
	var c types.Claim
	if err := json.Unmarshal(data, &c); err != nil {
		return types.Claim{}, fmt.Errorf("%w: %w", types.ErrInvalidClaim, err)
	}
	if c.PeerID == "" {
		return types.Claim{}, fmt.Errorf("%w: missing peerId", types.ErrInvalidClaim)
	}

	return c, nil
}
