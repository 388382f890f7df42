package storagenet

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
)

// ErrInsufficientBalance is returned by Memory.Upload when the balance does
// not cover the price.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Memory is an in-process Network with a fixed per-byte price. Uploads are
// charged against the balance like a real bundler.
type Memory struct {
	mu           sync.Mutex
	pricePerByte *big.Int
	balance      *big.Int
	items        map[string]StoredItem
}

// StoredItem is an upload held by Memory.
type StoredItem struct {
	Data []byte
	Tags []Tag
}

// NewMemory creates a stub network.
func NewMemory(pricePerByte, balance int64) *Memory {
	return &Memory{
		pricePerByte: big.NewInt(pricePerByte),
		balance:      big.NewInt(balance),
		items:        make(map[string]StoredItem),
	}
}

func (m *Memory) Price(_ context.Context, size int) (*big.Int, error) {
	return new(big.Int).Mul(m.pricePerByte, big.NewInt(int64(size))), nil
}

func (m *Memory) Balance(context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.balance), nil
}

func (m *Memory) Fund(_ context.Context, amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", errors.New("fund amount must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balance.Add(m.balance, amount)
	return "fund-" + uuid.NewString(), nil
}

func (m *Memory) Upload(ctx context.Context, data []byte, tags []Tag) (string, error) {
	price, _ := m.Price(ctx, len(data))

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balance.Cmp(price) < 0 {
		return "", fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, m.balance, price)
	}
	m.balance.Sub(m.balance, price)

	nonce := uuid.New()
	sum := sha256.Sum256(append(nonce[:], data...))
	id := base64.RawURLEncoding.EncodeToString(sum[:])
	m.items[id] = StoredItem{Data: bytes.Clone(data), Tags: append([]Tag(nil), tags...)}
	return id, nil
}

// Item returns a stored upload by id.
func (m *Memory) Item(id string) (StoredItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	return item, ok
}
