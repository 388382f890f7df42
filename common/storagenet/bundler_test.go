package storagenet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nuestrovinculo/vinculo/common/clients"
	"github.com/nuestrovinculo/vinculo/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFunder struct {
	to     string
	amount *big.Int
	err    error
}

func (f *fakeFunder) Transfer(_ context.Context, to string, amount *big.Int) (string, error) {
	f.to, f.amount = to, amount
	if f.err != nil {
		return "", f.err
	}
	return "0xfeed", nil
}

type fakeNode struct {
	t          *testing.T
	mux        *http.ServeMux
	posted     []byte
	registered string
	respondID  string

	rejectFunding bool
}

func newFakeNode(t *testing.T) *fakeNode {
	n := &fakeNode{t: t, mux: http.NewServeMux()}

	n.mux.HandleFunc("GET /price/matic/{bytes}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1000", r.PathValue("bytes"))
		w.Write([]byte("200"))
	})
	n.mux.HandleFunc("GET /account/balance/matic", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("address"))
		w.Write([]byte(`{"balance":"50"}`))
	})
	n.mux.HandleFunc("POST /account/balance/matic", func(w http.ResponseWriter, r *http.Request) {
		if n.rejectFunding {
			http.Error(w, "tx not found", http.StatusBadRequest)
			return
		}
		var body map[string]string
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		n.registered = body["tx_id"]
		w.WriteHeader(http.StatusOK)
	})
	n.mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"addresses":{"matic":"` + depositAddr + `"}}`))
	})
	n.mux.HandleFunc("POST /tx/matic", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		n.posted, _ = io.ReadAll(r.Body)
		if n.respondID != "" {
			w.Write([]byte(`{"id":"` + n.respondID + `"}`))
			return
		}
		item, err := ParseDataItem(n.posted)
		if !assert.NoError(t, err) {
			http.Error(w, "bad data item", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"id":"` + item.ID + `","timestamp":1}`))
	})
	return n
}

func newTestBundler(t *testing.T, node *fakeNode, funder Funder) *Bundler {
	srv := httptest.NewServer(node.mux)
	t.Cleanup(srv.Close)

	log := &testLogger{t: t}
	return NewBundler(
		BundlerConfig{NodeURL: srv.URL + "/", Currency: "matic"},
		clients.NewHTTPClient(srv.Client(), log),
		newTestSigner(t),
		funder,
		log,
	)
}

func TestBundler_PriceAndBalance(t *testing.T) {
	b := newTestBundler(t, newFakeNode(t), nil)

	price, err := b.Price(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), price)

	balance, err := b.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), balance)
}

func TestBundler_Fund(t *testing.T) {
	node := newFakeNode(t)
	funder := &fakeFunder{}
	b := newTestBundler(t, node, funder)

	txID, err := b.Fund(context.Background(), big.NewInt(165))
	require.NoError(t, err)

	assert.Equal(t, "0xfeed", txID)
	assert.Equal(t, depositAddr, funder.to)
	assert.Equal(t, big.NewInt(165), funder.amount)
	assert.Equal(t, "0xfeed", node.registered)
}

func TestBundler_FundWithoutFunder(t *testing.T) {
	b := newTestBundler(t, newFakeNode(t), nil)
	_, err := b.Fund(context.Background(), big.NewInt(1))
	assert.ErrorIs(t, err, config.ErrConfigurationMissing)

	var missing *config.MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "POLYGON_RPC_URL", missing.Key)
}

func TestBundler_FundRegistrationFailureKeepsTxID(t *testing.T) {
	node := newFakeNode(t)
	node.rejectFunding = true
	b := newTestBundler(t, node, &fakeFunder{})

	txID, err := b.Fund(context.Background(), big.NewInt(10))
	require.Error(t, err)
	assert.Equal(t, "0xfeed", txID)

	var unregistered *FundingUnregisteredError
	require.ErrorAs(t, err, &unregistered)
	assert.Equal(t, "0xfeed", unregistered.TxID)
}

func TestBundler_FundTransferFailure(t *testing.T) {
	node := newFakeNode(t)
	b := newTestBundler(t, node, &fakeFunder{err: errors.New("rpc down")})

	_, err := b.Fund(context.Background(), big.NewInt(1))
	assert.ErrorContains(t, err, "rpc down")
	assert.Empty(t, node.registered)
}

func TestBundler_Upload(t *testing.T) {
	node := newFakeNode(t)
	b := newTestBundler(t, node, nil)

	tags := []Tag{{Name: "Content-Type", Value: "video/mp4"}}
	id, err := b.Upload(context.Background(), []byte("video"), tags)
	require.NoError(t, err)

	item, err := ParseDataItem(node.posted)
	require.NoError(t, err)
	assert.Equal(t, item.ID, id)
	assert.Equal(t, []byte("video"), item.Data)
	assert.Equal(t, tags, item.Tags)
}

func TestBundler_UploadPrefersNodeID(t *testing.T) {
	node := newFakeNode(t)
	node.respondID = "node-assigned"
	b := newTestBundler(t, node, nil)

	id, err := b.Upload(context.Background(), []byte("video"), nil)
	require.NoError(t, err)
	assert.Equal(t, "node-assigned", id)
}

func TestBundler_NodeError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	b := newTestBundler(t, &fakeNode{t: t, mux: mux}, nil)

	_, err := b.Price(context.Background(), 1)
	var statusErr *clients.StatusError
	assert.True(t, errors.As(err, &statusErr))
}

func TestParseAmount(t *testing.T) {
	for in, want := range map[string]int64{"42": 42, ` "7" `: 7, "0\n": 0} {
		got, err := parseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, big.NewInt(want), got)
	}

	_, err := parseAmount("1.5")
	assert.Error(t, err)

	huge, err := parseAmount("123456789012345678901234567890")
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", huge.String())
}
