package service

import (
	"errors"
	"fmt"

	"github.com/nuestrovinculo/vinculo/common/config"
)

var (
	// ErrInvalidInput means the card id or payload was missing or empty
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageNetwork means a quote, balance, funding or upload call failed
	ErrStorageNetwork = errors.New("storage network error")

	// ErrStorageNetworkTimeout means a storage network call hit its deadline
	ErrStorageNetworkTimeout = errors.New("storage network timeout")

	// ErrFundingNotRegistered means the funding transfer was sent on chain but
	// the node did not credit it. Retrying would fund again.
	ErrFundingNotRegistered = errors.New("funding sent but not registered")

	// ErrPersistedUploadLost means the upload was paid for and stored but its
	// URL could not be recorded against the card
	ErrPersistedUploadLost = errors.New("upload stored but not recorded")

	// ErrStoreUnavailable means the card store could not be read
	ErrStoreUnavailable = errors.New("card store unavailable")
)

// PersistedUploadLostError carries what an operator needs to record the
// upload by hand
type PersistedUploadLostError struct {
	CardID string
	TxID   string
	URL    string
	Err    error
}

func (e *PersistedUploadLostError) Error() string {
	return fmt.Sprintf("%s: card %s tx %s url %s: %v", ErrPersistedUploadLost, e.CardID, e.TxID, e.URL, e.Err)
}

func (e *PersistedUploadLostError) Is(target error) bool {
	return target == ErrPersistedUploadLost
}

func (e *PersistedUploadLostError) Unwrap() error {
	return e.Err
}

// ErrorKind names the category of err for metrics and logs
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, config.ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, ErrFundingNotRegistered):
		return "funding_not_registered"
	case errors.Is(err, ErrPersistedUploadLost):
		return "persisted_upload_lost"
	case errors.Is(err, ErrStorageNetworkTimeout):
		return "storage_network_timeout"
	case errors.Is(err, ErrStorageNetwork):
		return "storage_network"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "unknown"
	}
}
