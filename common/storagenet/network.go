// Package storagenet talks to pay-per-byte permanent storage networks.
//
// A Network quotes a price for a payload size, reports the prepaid balance of
// the service account, tops that balance up and uploads payloads. Amounts are
// integers in the fee currency's base units.
package storagenet

import (
	"context"
	"math/big"
	"strings"
)

// Network is a pay-per-byte storage network seen from one funded account.
type Network interface {
	// Price quotes the cost of storing size bytes.
	Price(ctx context.Context, size int) (*big.Int, error)
	// Balance returns the prepaid balance available for uploads.
	Balance(ctx context.Context) (*big.Int, error)
	// Fund tops up the balance by amount and returns the funding transaction id.
	Fund(ctx context.Context, amount *big.Int) (string, error)
	// Upload stores data with tags and returns its transaction id.
	Upload(ctx context.Context, data []byte, tags []Tag) (string, error)
}

// Tag is a name/value pair attached to an upload.
type Tag struct {
	Name  string
	Value string
}

// ResourceURL builds the public URL of a transaction behind gateway.
func ResourceURL(gateway, txID string) string {
	return strings.TrimRight(gateway, "/") + "/" + txID
}

// Unconfigured is a Network that cannot be used because required settings
// are missing. Every method returns Err without doing any I/O.
type Unconfigured struct {
	Err error
}

func (u Unconfigured) Price(context.Context, int) (*big.Int, error) { return nil, u.Err }

func (u Unconfigured) Balance(context.Context) (*big.Int, error) { return nil, u.Err }

func (u Unconfigured) Fund(context.Context, *big.Int) (string, error) { return "", u.Err }

func (u Unconfigured) Upload(context.Context, []byte, []Tag) (string, error) { return "", u.Err }
