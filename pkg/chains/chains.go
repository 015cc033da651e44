package chains

import (
	"fmt"
	"strings"
)

// Network is a named ledger network and the public endpoints used with it.
type Network struct {
	Name        string
	Passphrase  string
	RPCURL      string
	ExplorerURL string
}

var (
	Testnet = Network{
		Name:        "testnet",
		Passphrase:  "Test SDF Network ; September 2015",
		RPCURL:      "https://soroban-testnet.stellar.org",
		ExplorerURL: "https://stellar.expert/explorer/testnet",
	}
	Pubnet = Network{
		Name:        "public",
		Passphrase:  "Public Global Stellar Network ; September 2015",
		RPCURL:      "https://mainnet.sorobanrpc.com",
		ExplorerURL: "https://stellar.expert/explorer/public",
	}
	Futurenet = Network{
		Name:        "futurenet",
		Passphrase:  "Test SDF Future Network ; October 2022",
		RPCURL:      "https://rpc-futurenet.stellar.org",
		ExplorerURL: "https://stellar.expert/explorer/futurenet",
	}
)

var byName = map[string]Network{
	"testnet":   Testnet,
	"public":    Pubnet,
	"pubnet":    Pubnet,
	"mainnet":   Pubnet,
	"futurenet": Futurenet,
}

// Lookup returns the preset for name, case-insensitively.
func Lookup(name string) (Network, error) {
	n, ok := byName[strings.ToLower(name)]
	if !ok {
		return Network{}, fmt.Errorf("unknown network %q", name)
	}
	return n, nil
}

// TxURL returns the explorer page for a transaction hash, or "" when the
// network has no explorer configured.
func (n Network) TxURL(hash string) string {
	if n.ExplorerURL == "" {
		return ""
	}
	return strings.TrimSuffix(n.ExplorerURL, "/") + "/tx/" + hash
}
