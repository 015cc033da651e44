package liquiditypool

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// --- PoolID Implementation ---

// PoolID is the 32-byte identifier of a liquidity pool ledger entry.
//
// Encoding rules:
//   - The ID is the SHA-256 digest of the XDR LiquidityPoolParameters, so it is
//     always exactly 32 bytes; there is no padding or address form.
//   - The text form is 64 lowercase hex characters without a "0x" prefix, the
//     form the network's RPC and explorers use.
type PoolID [32]byte

// Bytes returns the raw underlying byte slice.
// Output: A 32-byte slice.
func (p PoolID) Bytes() []byte {
	return p[:]
}

// String returns the hex string representation of the ID.
func (p PoolID) String() string {
	return hex.EncodeToString(p[:])
}

// IsZero reports whether p is the zero value, which no pool can have.
func (p PoolID) IsZero() bool {
	return p == PoolID{}
}

// ParsePoolID parses the 64-character hex form. A "0x" prefix is tolerated.
func ParsePoolID(s string) (PoolID, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return PoolID{}, fmt.Errorf("pool id must be 64 hex characters, got %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return PoolID{}, err
	}
	var id PoolID
	copy(id[:], b)
	return id, nil
}

// MarshalJSON serializes the ID as a hex string.
func (p PoolID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON parses a hex string into the ID.
//
// Unlike a generic 32-byte key, a pool ID is never serialized short, so
// anything other than exactly 32 bytes is rejected.
func (p *PoolID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := ParsePoolID(s)
	if err != nil {
		return errors.Join(errors.New("invalid pool id"), err)
	}
	*p = id
	return nil
}
