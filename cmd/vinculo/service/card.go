package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/models"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/repository"
	"github.com/nuestrovinculo/vinculo/common/config"
	"github.com/nuestrovinculo/vinculo/common/logger"
	"github.com/nuestrovinculo/vinculo/common/metrics"
	"github.com/nuestrovinculo/vinculo/common/storagenet"
)

// CardOptions tunes CardService
type CardOptions struct {
	DefaultInitialVideoURL string
	GatewayURL             string
	AppName                string
	CallTimeout            time.Duration
	UploadTimeout          time.Duration
	FundingMarginPercent   int
}

// CardService uploads card videos and answers card lookups
type CardService struct {
	store    repository.CardStore
	network  storagenet.Network
	observer metrics.UploadObserver
	opts     CardOptions
	log      *logger.Logger
}

// NewCardService creates a new card service
func NewCardService(
	store repository.CardStore,
	network storagenet.Network,
	observer metrics.UploadObserver,
	opts CardOptions,
	log *logger.Logger,
) *CardService {
	if observer == nil {
		observer = metrics.Nop{}
	}
	return &CardService{
		store:    store,
		network:  network,
		observer: observer,
		opts:     opts,
		log:      log,
	}
}

// GetCard returns the card's videos. Unknown cards get the default initial
// video and no final video; that is not an error.
func (s *CardService) GetCard(ctx context.Context, cardID string) (*models.CardView, error) {
	if cardID == "" {
		return nil, fmt.Errorf("%w: card id is required", ErrInvalidInput)
	}

	card, err := s.store.Get(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	view := &models.CardView{
		CardID:          cardID,
		InitialVideoURL: s.opts.DefaultInitialVideoURL,
	}
	if card != nil {
		view.FinalVideoURL = card.VideoURL
		view.Registered = true
	}
	return view, nil
}

// SubmitVideo pays for and uploads payload, then records the resulting URL
// against the card. Every call is a new paid upload.
func (s *CardService) SubmitVideo(ctx context.Context, cardID string, payload []byte) (url string, err error) {
	if cardID == "" {
		return "", fmt.Errorf("%w: card id is required", ErrInvalidInput)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: video is empty", ErrInvalidInput)
	}

	log := s.log.WithContext(ctx).WithCardID(cardID).WithJobID(uuid.NewString())
	start := time.Now()
	defer func() {
		s.observer.RecordUpload(time.Since(start), len(payload), ErrorKind(err))
	}()

	log.Info("upload started", "size_bytes", len(payload))

	var price *big.Int
	err = s.withTimeout(ctx, s.opts.CallTimeout, func(ctx context.Context) (e error) {
		price, e = s.network.Price(ctx, len(payload))
		return e
	})
	if err != nil {
		return "", s.networkError("quote price", err, log)
	}

	var balance *big.Int
	err = s.withTimeout(ctx, s.opts.CallTimeout, func(ctx context.Context) (e error) {
		balance, e = s.network.Balance(ctx)
		return e
	})
	if err != nil {
		return "", s.networkError("read balance", err, log)
	}

	log.Info("upload quoted", "price", price.String(), "balance", balance.String())

	if amount := FundingAmount(price, balance, s.opts.FundingMarginPercent); amount != nil {
		var fundTx string
		err = s.withTimeout(ctx, s.opts.CallTimeout, func(ctx context.Context) (e error) {
			fundTx, e = s.network.Fund(ctx, amount)
			return e
		})
		var unregistered *storagenet.FundingUnregisteredError
		if errors.As(err, &unregistered) {
			log.Error("funding transfer sent but not credited by the node",
				"fund_tx_id", unregistered.TxID, "amount", amount.String(), "error", err)
			return "", fmt.Errorf("%w: %w", ErrFundingNotRegistered, err)
		}
		if err != nil {
			return "", s.networkError("fund account", err, log)
		}
		s.observer.RecordFunding(amount)
		log.Info("account funded", "amount", amount.String(), "fund_tx_id", fundTx)
	}

	tags := []storagenet.Tag{
		{Name: "Content-Type", Value: models.VideoContentType},
		{Name: "Card-Id", Value: cardID},
	}
	if s.opts.AppName != "" {
		tags = append(tags, storagenet.Tag{Name: "App-Name", Value: s.opts.AppName})
	}

	var txID string
	err = s.withTimeout(ctx, s.opts.UploadTimeout, func(ctx context.Context) (e error) {
		txID, e = s.network.Upload(ctx, payload, tags)
		return e
	})
	if err != nil {
		return "", s.networkError("upload", err, log)
	}

	url = storagenet.ResourceURL(s.opts.GatewayURL, txID)
	log.Info("video uploaded", "tx_id", txID, "video_url", url)

	// The upload is paid for; record it even if the caller has gone away.
	persistCtx := context.WithoutCancel(ctx)
	err = s.withTimeout(persistCtx, s.opts.CallTimeout, func(ctx context.Context) error {
		return s.store.Upsert(ctx, cardID, url)
	})
	if err != nil {
		err = &PersistedUploadLostError{CardID: cardID, TxID: txID, URL: url, Err: err}
		log.Error("upload not recorded", "tx_id", txID, "video_url", url, "error", err)
		return "", err
	}

	log.Info("card updated", "video_url", url, "duration_ms", time.Since(start).Milliseconds())
	return url, nil
}

// FundingAmount returns how much to fund so balance covers price with
// marginPercent headroom, rounded up to a whole base unit. It returns nil
// when no funding is needed.
func FundingAmount(price, balance *big.Int, marginPercent int) *big.Int {
	if balance.Cmp(price) >= 0 {
		return nil
	}
	shortfall := new(big.Int).Sub(price, balance)
	scaled := shortfall.Mul(shortfall, big.NewInt(int64(100+marginPercent)))
	hundred := big.NewInt(100)
	amount, rem := new(big.Int).QuoRem(scaled, hundred, new(big.Int))
	if rem.Sign() > 0 {
		amount.Add(amount, big.NewInt(1))
	}
	return amount
}

func (s *CardService) withTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

func (s *CardService) networkError(op string, err error, log *logger.Logger) error {
	switch {
	case errors.Is(err, config.ErrConfigurationMissing):
		log.Warn("storage network not configured", "error", err)
		return err
	case errors.Is(err, context.DeadlineExceeded):
		log.Error("storage network timed out", "op", op, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrStorageNetworkTimeout, op, err)
	default:
		log.Error("storage network call failed", "op", op, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrStorageNetwork, op, err)
	}
}
