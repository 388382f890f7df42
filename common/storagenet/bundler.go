package storagenet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nuestrovinculo/vinculo/common/clients"
	"github.com/nuestrovinculo/vinculo/common/config"
)

// FundingUnregisteredError means the settlement-chain transfer went through
// but the node did not accept it. Funding again would pay twice; the node
// can be pointed at TxID instead.
type FundingUnregisteredError struct {
	TxID string
	Err  error
}

func (e *FundingUnregisteredError) Error() string {
	return fmt.Sprintf("register funding %s: %v", e.TxID, e.Err)
}

func (e *FundingUnregisteredError) Unwrap() error {
	return e.Err
}

// BundlerConfig locates a bundler node and the currency fees are paid in.
type BundlerConfig struct {
	NodeURL  string
	Currency string
}

// Bundler is a Network backed by a bundler node's REST API. Uploads are
// signed data items; fees come from the signer's prepaid node balance.
type Bundler struct {
	cfg    BundlerConfig
	http   *clients.HTTPClient
	signer *Signer
	funder Funder
	log    clients.Logger
}

// NewBundler creates a bundler client. funder may be nil when no settlement
// chain endpoint is configured; uploads covered by the prepaid balance still
// work and Fund reports the missing POLYGON_RPC_URL.
func NewBundler(cfg BundlerConfig, httpClient *clients.HTTPClient, signer *Signer, funder Funder, log clients.Logger) *Bundler {
	cfg.NodeURL = strings.TrimRight(cfg.NodeURL, "/")
	return &Bundler{
		cfg:    cfg,
		http:   httpClient,
		signer: signer,
		funder: funder,
		log:    log,
	}
}

// Address is the account whose balance pays for uploads.
func (b *Bundler) Address() string {
	return b.signer.Address()
}

// Price quotes size bytes via GET /price/{currency}/{bytes}.
func (b *Bundler) Price(ctx context.Context, size int) (*big.Int, error) {
	endpoint := fmt.Sprintf("%s/price/%s/%d", b.cfg.NodeURL, url.PathEscape(b.cfg.Currency), size)
	body, err := b.http.Do(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get price: %w", err)
	}
	return parseAmount(string(body))
}

// Balance reads the signer's node balance.
func (b *Bundler) Balance(ctx context.Context) (*big.Int, error) {
	endpoint := fmt.Sprintf("%s/account/balance/%s?address=%s",
		b.cfg.NodeURL, url.PathEscape(b.cfg.Currency), url.QueryEscape(b.signer.Address()))

	var resp struct {
		Balance json.RawMessage `json:"balance"`
	}
	if err := b.http.DoJSON(ctx, http.MethodGet, endpoint, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return parseAmount(string(resp.Balance))
}

// Fund transfers amount to the node's deposit address on the settlement
// chain and registers the transfer with the node.
func (b *Bundler) Fund(ctx context.Context, amount *big.Int) (string, error) {
	if b.funder == nil {
		return "", config.Missing("POLYGON_RPC_URL")
	}

	deposit, err := b.depositAddress(ctx)
	if err != nil {
		return "", err
	}

	txID, err := b.funder.Transfer(ctx, deposit, amount)
	if err != nil {
		return "", fmt.Errorf("fund transfer: %w", err)
	}
	b.log.Info("funding transfer sent", "tx_id", txID, "amount", amount.String(), "to", deposit)

	payload, err := json.Marshal(map[string]string{"tx_id": txID})
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/account/balance/%s", b.cfg.NodeURL, url.PathEscape(b.cfg.Currency))
	if _, err := b.http.Do(ctx, http.MethodPost, endpoint, bytes.NewReader(payload),
		map[string]string{"Content-Type": "application/json"}); err != nil {
		return txID, &FundingUnregisteredError{TxID: txID, Err: err}
	}

	return txID, nil
}

func (b *Bundler) depositAddress(ctx context.Context) (string, error) {
	var info struct {
		Addresses map[string]string `json:"addresses"`
	}
	if err := b.http.DoJSON(ctx, http.MethodGet, b.cfg.NodeURL+"/info", nil, nil, &info); err != nil {
		return "", fmt.Errorf("get node info: %w", err)
	}
	addr, ok := info.Addresses[b.cfg.Currency]
	if !ok || addr == "" {
		return "", fmt.Errorf("node has no deposit address for %s", b.cfg.Currency)
	}
	return addr, nil
}

// Upload signs data as a data item and posts it to the node.
func (b *Bundler) Upload(ctx context.Context, data []byte, tags []Tag) (string, error) {
	item, err := NewDataItem(b.signer, data, tags)
	if err != nil {
		return "", fmt.Errorf("build data item: %w", err)
	}

	endpoint := fmt.Sprintf("%s/tx/%s", b.cfg.NodeURL, url.PathEscape(b.cfg.Currency))
	body, err := b.http.Do(ctx, http.MethodPost, endpoint, bytes.NewReader(item.Bytes()),
		map[string]string{"Content-Type": "application/octet-stream"})
	if err != nil {
		return "", fmt.Errorf("post data item: %w", err)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			b.log.Warn("unreadable upload response, using local id", "id", item.ID, "error", err)
		}
	}
	if resp.ID != "" && resp.ID != item.ID {
		b.log.Warn("node returned a different id", "local_id", item.ID, "node_id", resp.ID)
		return resp.ID, nil
	}
	return item.ID, nil
}

// parseAmount accepts a bare or quoted base-10 integer.
func parseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return amount, nil
}
