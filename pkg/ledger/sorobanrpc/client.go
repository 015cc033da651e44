package sorobanrpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/defistate/stellar-pool-client-go/pkg/ledger"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stellar/go/xdr"
)

// JSON-RPC method names. Parameters are passed by position.
const (
	MethodGetNetwork       = "getNetwork"
	MethodGetLedgerEntries = "getLedgerEntries"
	MethodSendTransaction  = "sendTransaction"
	MethodGetTransaction   = "getTransaction"

	defaultRequestTimeout = 15 * time.Second
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the configuration for the client.
type Config struct {
	URL    string
	Logger Logger
	// RequestTimeout bounds each HTTP round trip. Zero means 15s.
	RequestTimeout time.Duration
}

// validate checks if the configuration is valid.
func (c *Config) validate() error {
	if c.URL == "" {
		return errors.New("config: URL is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.RequestTimeout < 0 {
		return errors.New("config: RequestTimeout must not be negative")
	}
	return nil
}

// Client is a ledger.Ledger backed by a Soroban RPC endpoint.
type Client struct {
	rpc    *rpc.Client
	url    string
	logger Logger
}

var _ ledger.Ledger = (*Client)(nil)

// NewClient creates a client for the endpoint. No request is made until the
// first call.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}

	rpcClient, err := rpc.DialOptions(ctx, cfg.URL, rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.URL, err)
	}

	return &Client{
		rpc:    rpcClient,
		url:    cfg.URL,
		logger: cfg.Logger,
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// NetworkInfo is the answer to getNetwork.
type NetworkInfo struct {
	Passphrase      string `json:"passphrase"`
	ProtocolVersion int    `json:"protocolVersion"`
	FriendbotURL    string `json:"friendbotUrl,omitempty"`
}

// Network returns the endpoint's network description.
func (c *Client) Network(ctx context.Context) (*NetworkInfo, error) {
	var info NetworkInfo
	if err := c.call(ctx, &info, MethodGetNetwork); err != nil {
		return nil, err
	}
	return &info, nil
}

// VerifyNetwork fails if the endpoint serves a different network than
// passphrase. Envelopes signed for another network fail with tx_bad_auth.
func (c *Client) VerifyNetwork(ctx context.Context, passphrase string) error {
	info, err := c.Network(ctx)
	if err != nil {
		return err
	}
	if info.Passphrase != passphrase {
		return fmt.Errorf("endpoint %s serves network %q, expected %q", c.url, info.Passphrase, passphrase)
	}
	c.logger.Info("Connected to ledger network", "url", c.url, "protocol_version", info.ProtocolVersion)
	return nil
}

type ledgerEntry struct {
	Key                   string `json:"key"`
	XDR                   string `json:"xdr"`
	LastModifiedLedgerSeq uint32 `json:"lastModifiedLedgerSeq"`
}

type getLedgerEntriesResult struct {
	Entries      []ledgerEntry `json:"entries"`
	LatestLedger uint32        `json:"latestLedger"`
}

// Account fetches the account ledger entry and decodes its sequence number.
func (c *Client) Account(ctx context.Context, accountID string) (*ledger.Account, error) {
	key, err := accountLedgerKey(accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrAccountNotFound, err)
	}

	var res getLedgerEntriesResult
	if err := c.call(ctx, &res, MethodGetLedgerEntries, []string{key}); err != nil {
		return nil, err
	}
	if len(res.Entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, accountID)
	}

	acct, err := decodeAccountEntry(res.Entries[0].XDR)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ledger.ErrRequestRejected, MethodGetLedgerEntries, err)
	}
	c.logger.Debug("Fetched account", "account", acct.ID, "sequence", acct.Sequence, "latest_ledger", res.LatestLedger)
	return acct, nil
}

type sendTransactionResult struct {
	Status         string `json:"status"`
	Hash           string `json:"hash"`
	LatestLedger   uint32 `json:"latestLedger"`
	ErrorResultXDR string `json:"errorResultXdr,omitempty"`
}

// SendTransaction submits the envelope.
func (c *Client) SendTransaction(ctx context.Context, envelopeXDR string) (*ledger.SendResult, error) {
	var res sendTransactionResult
	if err := c.call(ctx, &res, MethodSendTransaction, envelopeXDR); err != nil {
		return nil, err
	}
	c.logger.Debug("Transaction sent", "hash", res.Hash, "status", res.Status, "latest_ledger", res.LatestLedger)
	return &ledger.SendResult{
		Status:         ledger.SendStatus(res.Status),
		Hash:           res.Hash,
		LatestLedger:   res.LatestLedger,
		ErrorResultXDR: res.ErrorResultXDR,
	}, nil
}

type getTransactionResult struct {
	Status       string `json:"status"`
	Ledger       uint32 `json:"ledger,omitempty"`
	LatestLedger uint32 `json:"latestLedger"`
	ResultXDR    string `json:"resultXdr,omitempty"`
}

// GetTransaction looks up a transaction by its hex hash.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*ledger.TransactionInfo, error) {
	var res getTransactionResult
	if err := c.call(ctx, &res, MethodGetTransaction, hash); err != nil {
		return nil, err
	}
	return &ledger.TransactionInfo{
		Status:       ledger.TxStatus(res.Status),
		Ledger:       res.Ledger,
		LatestLedger: res.LatestLedger,
		ResultXDR:    res.ResultXDR,
	}, nil
}

func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	err := c.rpc.CallContext(ctx, result, method, args...)
	if err == nil {
		return nil
	}
	classified := classify(method, err)
	c.logger.Warn("RPC call failed", "method", method, "error", classified)
	return classified
}

// classify separates refusals by the endpoint (it answered, so the request
// was evaluated) from transport failures (nothing is known to have arrived).
func classify(method string, err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: %s: %v (code %d)", ledger.ErrRequestRejected, method, err, rpcErr.ErrorCode())
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s: %v", ledger.ErrRequestRejected, method, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", ledger.ErrUnreachable, method, err)
}

func accountLedgerKey(accountID string) (string, error) {
	id, err := xdr.AddressToAccountId(accountID)
	if err != nil {
		return "", err
	}
	var key xdr.LedgerKey
	if err := key.SetAccount(id); err != nil {
		return "", err
	}
	return key.MarshalBinaryBase64()
}

// decodeAccountEntry parses an XDR LedgerEntryData holding an AccountEntry.
func decodeAccountEntry(b64 string) (*ledger.Account, error) {
	var data xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(b64, &data); err != nil {
		return nil, err
	}
	entry, ok := data.GetAccount()
	if !ok {
		return nil, fmt.Errorf("ledger entry type %s is not an account", data.Type)
	}
	id, err := entry.AccountId.GetAddress()
	if err != nil {
		return nil, err
	}
	return &ledger.Account{
		ID:       id,
		Balance:  int64(entry.Balance),
		Sequence: int64(entry.SeqNum),
	}, nil
}
