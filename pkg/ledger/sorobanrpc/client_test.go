package sorobanrpc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/defistate/stellar-pool-client-go/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccount = "GDVEU3DD4KOFECV66VIHWEZOYX4ZKR3WV27L464SIIPOU2IUI3JCZA57"
	// LedgerKey for testAccount.
	testAccountKey = "AAAAAAAAAADqSmxj4pxSCr71UHsTLsX5lUd2rr6+e5JCHuppFEbSLA=="
	// AccountEntry for testAccount: balance 1000 XLM, sequence 123456789.
	testAccountEntry = "AAAAAAAAAADqSmxj4pxSCr71UHsTLsX5lUd2rr6+e5JCHuppFEbSLAAAAAJUC+QAAAAAAAdbzRUAAAAAAAAAAAAAAAAAAAAAAQAAAAAAAAAAAAAA"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type handlerFunc func(params json.RawMessage) (any, *rpcErrorObject)

// newTestServer serves JSON-RPC 2.0 over HTTP, dispatching on method name.
func newTestServer(t *testing.T, handlers map[string]handlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req rpcRequest
		require.NoError(t, json.Unmarshal(body, &req))

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		h, ok := handlers[req.Method]
		if !ok {
			resp["error"] = rpcErrorObject{Code: -32601, Message: "method not found"}
		} else if result, rpcErr := h(req.Params); rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), Config{
		URL:    url,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestConfigValidate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewClient(context.Background(), Config{Logger: logger})
	assert.EqualError(t, err, "config: URL is required")

	_, err = NewClient(context.Background(), Config{URL: "http://localhost:1"})
	assert.EqualError(t, err, "config: Logger is required")

	_, err = NewClient(context.Background(), Config{URL: "http://localhost:1", Logger: logger, RequestTimeout: -1})
	assert.Error(t, err)
}

func TestClient_Account(t *testing.T) {
	srv := newTestServer(t, map[string]handlerFunc{
		MethodGetLedgerEntries: func(params json.RawMessage) (any, *rpcErrorObject) {
			var args [][]string
			if err := json.Unmarshal(params, &args); err != nil || len(args) != 1 || len(args[0]) != 1 {
				return nil, &rpcErrorObject{Code: -32602, Message: "invalid params"}
			}
			if args[0][0] != testAccountKey {
				return map[string]any{"entries": []any{}, "latestLedger": 1000}, nil
			}
			return map[string]any{
				"entries": []map[string]any{{
					"key":                   testAccountKey,
					"xdr":                   testAccountEntry,
					"lastModifiedLedgerSeq": 990,
				}},
				"latestLedger": 1000,
			}, nil
		},
	})
	c := newTestClient(t, srv.URL)

	t.Run("Found", func(t *testing.T) {
		acct, err := c.Account(context.Background(), testAccount)
		require.NoError(t, err)
		assert.Equal(t, testAccount, acct.ID)
		assert.Equal(t, int64(123456789), acct.Sequence)
		assert.Equal(t, int64(10_000_000_000), acct.Balance)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := c.Account(context.Background(), "GD6ROJBYLKQMOW3E7N4M2YBPUHMZD7PL65VRHRMO24BOVSBV5H3BQRSL")
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	})

	t.Run("InvalidAddress", func(t *testing.T) {
		_, err := c.Account(context.Background(), "not-an-account")
		assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	})
}

func TestClient_SendTransaction(t *testing.T) {
	var got []string
	srv := newTestServer(t, map[string]handlerFunc{
		MethodSendTransaction: func(params json.RawMessage) (any, *rpcErrorObject) {
			var args []string
			_ = json.Unmarshal(params, &args)
			got = args
			if args[0] == "bad" {
				return map[string]any{
					"status":         "ERROR",
					"hash":           "ab",
					"latestLedger":   1001,
					"errorResultXdr": "AAAAAAAAAGT////7AAAAAA==",
				}, nil
			}
			return map[string]any{"status": "PENDING", "hash": "cd", "latestLedger": 1001}, nil
		},
	})
	c := newTestClient(t, srv.URL)

	res, err := c.SendTransaction(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, got)
	assert.Equal(t, ledger.SendPending, res.Status)
	assert.Equal(t, "cd", res.Hash)
	assert.Empty(t, res.ErrorResultXDR)

	res, err = c.SendTransaction(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, ledger.SendError, res.Status)
	assert.Equal(t, "AAAAAAAAAGT////7AAAAAA==", res.ErrorResultXDR)
}

func TestClient_GetTransaction(t *testing.T) {
	srv := newTestServer(t, map[string]handlerFunc{
		MethodGetTransaction: func(params json.RawMessage) (any, *rpcErrorObject) {
			var args []string
			_ = json.Unmarshal(params, &args)
			if args[0] == "missing" {
				return map[string]any{"status": "NOT_FOUND", "latestLedger": 1002}, nil
			}
			return map[string]any{
				"status":       "SUCCESS",
				"ledger":       1001,
				"latestLedger": 1002,
				"resultXdr":    "AAAAAAAAAMgAAAAAAAAAAgAAAAAAAAAGAAAAAAAAAAAAAAAWAAAAAAAAAAA=",
			}, nil
		},
	})
	c := newTestClient(t, srv.URL)

	info, err := c.GetTransaction(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, ledger.TxNotFound, info.Status)

	info, err = c.GetTransaction(context.Background(), "cd")
	require.NoError(t, err)
	assert.Equal(t, ledger.TxSuccess, info.Status)
	assert.Equal(t, uint32(1001), info.Ledger)
	assert.NotEmpty(t, info.ResultXDR)
}

func TestClient_VerifyNetwork(t *testing.T) {
	srv := newTestServer(t, map[string]handlerFunc{
		MethodGetNetwork: func(json.RawMessage) (any, *rpcErrorObject) {
			return map[string]any{"passphrase": "Test SDF Network ; September 2015", "protocolVersion": 22}, nil
		},
	})
	c := newTestClient(t, srv.URL)

	info, err := c.Network(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 22, info.ProtocolVersion)

	assert.NoError(t, c.VerifyNetwork(context.Background(), "Test SDF Network ; September 2015"))
	assert.Error(t, c.VerifyNetwork(context.Background(), "Public Global Stellar Network ; September 2015"))
}

func TestClient_ErrorClassification(t *testing.T) {
	t.Run("RPCErrorIsRejection", func(t *testing.T) {
		srv := newTestServer(t, map[string]handlerFunc{
			MethodSendTransaction: func(json.RawMessage) (any, *rpcErrorObject) {
				return nil, &rpcErrorObject{Code: -32602, Message: "invalid envelope"}
			},
		})
		c := newTestClient(t, srv.URL)

		_, err := c.SendTransaction(context.Background(), "x")
		assert.ErrorIs(t, err, ledger.ErrRequestRejected)
		assert.NotErrorIs(t, err, ledger.ErrUnreachable)
	})

	t.Run("ServerErrorIsUnreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)
		c := newTestClient(t, srv.URL)

		_, err := c.Account(context.Background(), testAccount)
		assert.ErrorIs(t, err, ledger.ErrUnreachable)
	})

	t.Run("ClientErrorIsRejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		}))
		t.Cleanup(srv.Close)
		c := newTestClient(t, srv.URL)

		_, err := c.GetTransaction(context.Background(), "cd")
		assert.ErrorIs(t, err, ledger.ErrRequestRejected)
	})

	t.Run("ClosedServerIsUnreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		c := newTestClient(t, url)

		_, err := c.SendTransaction(context.Background(), "x")
		assert.ErrorIs(t, err, ledger.ErrUnreachable)
	})
}
