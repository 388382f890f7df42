package service

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/nuestrovinculo/vinculo/cmd/vinculo/models"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/repository"
	"github.com/nuestrovinculo/vinculo/common/config"
	"github.com/nuestrovinculo/vinculo/common/logger"
	"github.com/nuestrovinculo/vinculo/common/storagenet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultURL = "https://nuestrovinculoespecial-gif.github.io/nuestraweb/comunionvideo.mp4"

// fakeNetwork records every call and returns canned answers
type fakeNetwork struct {
	price   *big.Int
	balance *big.Int
	txID    string

	priceErr, balanceErr, fundErr, uploadErr error
	uploadDelay                              time.Duration

	calls  []string
	funded *big.Int
	tags   []storagenet.Tag
	data   []byte
}

func (n *fakeNetwork) Price(_ context.Context, size int) (*big.Int, error) {
	n.calls = append(n.calls, "price")
	return n.price, n.priceErr
}

func (n *fakeNetwork) Balance(context.Context) (*big.Int, error) {
	n.calls = append(n.calls, "balance")
	return n.balance, n.balanceErr
}

func (n *fakeNetwork) Fund(_ context.Context, amount *big.Int) (string, error) {
	n.calls = append(n.calls, "fund")
	n.funded = amount
	return "0xfund", n.fundErr
}

func (n *fakeNetwork) Upload(ctx context.Context, data []byte, tags []storagenet.Tag) (string, error) {
	n.calls = append(n.calls, "upload")
	n.data, n.tags = data, tags
	if n.uploadDelay > 0 {
		select {
		case <-time.After(n.uploadDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return n.txID, n.uploadErr
}

// fakeStore wraps the memory store with injectable failures
type fakeStore struct {
	*repository.MemoryCardStore
	getErr, upsertErr error
	upserts           int
}

func (s *fakeStore) Get(ctx context.Context, cardID string) (*models.Card, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryCardStore.Get(ctx, cardID)
}

func (s *fakeStore) Upsert(ctx context.Context, cardID, videoURL string) error {
	s.upserts++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	return s.MemoryCardStore.Upsert(ctx, cardID, videoURL)
}

type recordingObserver struct {
	kinds    []string
	fundings []*big.Int
}

func (o *recordingObserver) RecordUpload(_ time.Duration, _ int, kind string) {
	o.kinds = append(o.kinds, kind)
}

func (o *recordingObserver) RecordFunding(amount *big.Int) {
	o.fundings = append(o.fundings, amount)
}

func newTestService(net storagenet.Network, store repository.CardStore, obs *recordingObserver) *CardService {
	return NewCardService(store, net, obs, CardOptions{
		DefaultInitialVideoURL: defaultURL,
		GatewayURL:             "https://arweave.net",
		AppName:                "vinculo",
		CallTimeout:            time.Second,
		UploadTimeout:          time.Second,
		FundingMarginPercent:   10,
	}, logger.NewWithWriter(&bytes.Buffer{}, "debug", "json"))
}

func newStore() *fakeStore {
	return &fakeStore{MemoryCardStore: repository.NewSeededMemoryCardStore()}
}

func TestSubmitVideo_FundsShortfallWithMargin(t *testing.T) {
	net := &fakeNetwork{price: big.NewInt(200), balance: big.NewInt(50), txID: "abc123"}
	store := newStore()
	obs := &recordingObserver{}
	svc := newTestService(net, store, obs)

	url, err := svc.SubmitVideo(context.Background(), "FAMILIA-1", []byte("video"))
	require.NoError(t, err)

	assert.Equal(t, "https://arweave.net/abc123", url)
	assert.Equal(t, []string{"price", "balance", "fund", "upload"}, net.calls)
	assert.Equal(t, big.NewInt(165), net.funded)
	assert.Equal(t, []*big.Int{big.NewInt(165)}, obs.fundings)
	assert.Equal(t, []string{""}, obs.kinds)

	card, err := store.Get(context.Background(), "FAMILIA-1")
	require.NoError(t, err)
	assert.Equal(t, url, *card.VideoURL)
}

func TestSubmitVideo_NoFundingWhenBalanceCovers(t *testing.T) {
	net := &fakeNetwork{price: big.NewInt(200), balance: big.NewInt(200), txID: "tx"}
	svc := newTestService(net, newStore(), &recordingObserver{})

	_, err := svc.SubmitVideo(context.Background(), "NEW-CARD", []byte("video"))
	require.NoError(t, err)
	assert.Equal(t, []string{"price", "balance", "upload"}, net.calls)
	assert.Nil(t, net.funded)
}

func TestSubmitVideo_Tags(t *testing.T) {
	net := &fakeNetwork{price: big.NewInt(0), balance: big.NewInt(0), txID: "tx"}
	svc := newTestService(net, newStore(), &recordingObserver{})

	_, err := svc.SubmitVideo(context.Background(), "DEMO", []byte("video"))
	require.NoError(t, err)

	assert.Contains(t, net.tags, storagenet.Tag{Name: "Content-Type", Value: "video/mp4"})
	assert.Contains(t, net.tags, storagenet.Tag{Name: "Card-Id", Value: "DEMO"})
	assert.Contains(t, net.tags, storagenet.Tag{Name: "App-Name", Value: "vinculo"})
	assert.Equal(t, []byte("video"), net.data)
}

func TestSubmitVideo_InvalidInputMakesNoCalls(t *testing.T) {
	net := &fakeNetwork{}
	store := newStore()
	obs := &recordingObserver{}
	svc := newTestService(net, store, obs)

	_, err := svc.SubmitVideo(context.Background(), "DEMO", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.SubmitVideo(context.Background(), "", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, net.calls)
	assert.Zero(t, store.upserts)
	assert.Empty(t, obs.kinds)
}

func TestSubmitVideo_NetworkFailuresLeaveStoreUntouched(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		net  *fakeNetwork
	}{
		{"price", &fakeNetwork{priceErr: boom}},
		{"balance", &fakeNetwork{price: big.NewInt(1), balanceErr: boom}},
		{"fund", &fakeNetwork{price: big.NewInt(10), balance: big.NewInt(0), fundErr: boom}},
		{"upload", &fakeNetwork{price: big.NewInt(0), balance: big.NewInt(0), uploadErr: boom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore()
			obs := &recordingObserver{}
			svc := newTestService(tt.net, store, obs)

			_, err := svc.SubmitVideo(context.Background(), "DEMO", []byte("video"))
			assert.ErrorIs(t, err, ErrStorageNetwork)
			assert.ErrorIs(t, err, boom)
			assert.NotErrorIs(t, err, ErrStorageNetworkTimeout)
			assert.Zero(t, store.upserts)
			assert.Equal(t, []string{"storage_network"}, obs.kinds)
			assert.Equal(t, tt.name, tt.net.calls[len(tt.net.calls)-1])
		})
	}
}

func TestSubmitVideo_FundingNotRegistered(t *testing.T) {
	unregistered := &storagenet.FundingUnregisteredError{TxID: "0xfund", Err: errors.New("tx not found")}
	net := &fakeNetwork{price: big.NewInt(10), balance: big.NewInt(0), fundErr: unregistered}
	store := newStore()
	obs := &recordingObserver{}
	svc := newTestService(net, store, obs)

	_, err := svc.SubmitVideo(context.Background(), "DEMO", []byte("video"))
	require.ErrorIs(t, err, ErrFundingNotRegistered)
	assert.NotErrorIs(t, err, ErrStorageNetwork)

	var got *storagenet.FundingUnregisteredError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "0xfund", got.TxID)

	assert.Equal(t, []string{"price", "balance", "fund"}, net.calls)
	assert.Zero(t, store.upserts)
	assert.Equal(t, []string{"funding_not_registered"}, obs.kinds)
}

func TestSubmitVideo_FundingWithoutRPCEndpoint(t *testing.T) {
	net := &fakeNetwork{price: big.NewInt(10), balance: big.NewInt(0), fundErr: config.Missing("POLYGON_RPC_URL")}
	obs := &recordingObserver{}
	svc := newTestService(net, newStore(), obs)

	_, err := svc.SubmitVideo(context.Background(), "DEMO", []byte("video"))
	var missing *config.MissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "POLYGON_RPC_URL", missing.Key)
	assert.Equal(t, []string{"configuration_missing"}, obs.kinds)
}

func TestSubmitVideo_Timeout(t *testing.T) {
	net := &fakeNetwork{price: big.NewInt(0), balance: big.NewInt(0), txID: "tx", uploadDelay: time.Second}
	store := newStore()
	svc := newTestService(net, store, &recordingObserver{})
	svc.opts.UploadTimeout = 20 * time.Millisecond

	_, err := svc.SubmitVideo(context.Background(), "DEMO", []byte("video"))
	assert.ErrorIs(t, err, ErrStorageNetworkTimeout)
	assert.NotErrorIs(t, err, ErrStorageNetwork)
	assert.Zero(t, store.upserts)
}

func TestSubmitVideo_PersistenceFailure(t *testing.T) {
	net := &fakeNetwork{price: big.NewInt(0), balance: big.NewInt(0), txID: "paid-tx"}
	store := newStore()
	store.upsertErr = errors.New("db down")
	obs := &recordingObserver{}
	svc := newTestService(net, store, obs)

	_, err := svc.SubmitVideo(context.Background(), "DEMO", []byte("video"))
	require.ErrorIs(t, err, ErrPersistedUploadLost)

	var lost *PersistedUploadLostError
	require.True(t, errors.As(err, &lost))
	assert.Equal(t, "DEMO", lost.CardID)
	assert.Equal(t, "paid-tx", lost.TxID)
	assert.Equal(t, "https://arweave.net/paid-tx", lost.URL)
	assert.ErrorContains(t, err, "db down")
	assert.Equal(t, []string{"persisted_upload_lost"}, obs.kinds)
}

func TestSubmitVideo_PersistsAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	net := &fakeNetwork{price: big.NewInt(0), balance: big.NewInt(0), txID: "tx"}
	store := &cancelOnUpsertStore{fakeStore: newStore()}
	store.onUpsert = func(ctx context.Context) error { cancel(); return ctx.Err() }
	svc := newTestService(net, store, &recordingObserver{})

	_, err := svc.SubmitVideo(ctx, "DEMO", []byte("video"))
	require.NoError(t, err)
}

type cancelOnUpsertStore struct {
	*fakeStore
	onUpsert func(ctx context.Context) error
}

func (s *cancelOnUpsertStore) Upsert(ctx context.Context, cardID, videoURL string) error {
	if err := s.onUpsert(ctx); err != nil {
		return err
	}
	return s.fakeStore.Upsert(ctx, cardID, videoURL)
}

func TestSubmitVideo_ConfigurationMissing(t *testing.T) {
	store := newStore()
	obs := &recordingObserver{}
	svc := newTestService(storagenet.Unconfigured{Err: config.Missing("PRIVATE_KEY")}, store, obs)

	_, err := svc.SubmitVideo(context.Background(), "DEMO", []byte("video"))
	assert.ErrorIs(t, err, config.ErrConfigurationMissing)
	assert.NotErrorIs(t, err, ErrStorageNetwork)
	assert.Zero(t, store.upserts)
	assert.Equal(t, []string{"configuration_missing"}, obs.kinds)
}

func TestSubmitVideo_WithMemoryNetwork(t *testing.T) {
	mem := storagenet.NewMemory(1, 0)
	svc := newTestService(mem, newStore(), &recordingObserver{})

	url, err := svc.SubmitVideo(context.Background(), "DEMO", []byte("0123456789"))
	require.NoError(t, err)

	id := url[len("https://arweave.net/"):]
	item, ok := mem.Item(id)
	require.True(t, ok)
	assert.Equal(t, []byte("0123456789"), item.Data)

	// funded 11 for a price of 10, so one unit is left over
	balance, _ := mem.Balance(context.Background())
	assert.Equal(t, big.NewInt(1), balance)
}

func TestGetCard(t *testing.T) {
	svc := newTestService(&fakeNetwork{}, newStore(), &recordingObserver{})
	ctx := context.Background()

	unknown, err := svc.GetCard(ctx, "UNKNOWN")
	require.NoError(t, err)
	assert.Equal(t, &models.CardView{CardID: "UNKNOWN", InitialVideoURL: defaultURL}, unknown)

	demo, err := svc.GetCard(ctx, "DEMO")
	require.NoError(t, err)
	assert.True(t, demo.Registered)
	assert.Nil(t, demo.FinalVideoURL)
	assert.Equal(t, defaultURL, demo.InitialVideoURL)

	familia, err := svc.GetCard(ctx, "FAMILIA-1")
	require.NoError(t, err)
	require.NotNil(t, familia.FinalVideoURL)
	assert.Equal(t, "https://interactive-examples.mdn.mozilla.net/media/cc0-videos/flower.mp4", *familia.FinalVideoURL)
}

func TestGetCard_Errors(t *testing.T) {
	store := newStore()
	store.getErr = errors.New("conn reset")
	svc := newTestService(&fakeNetwork{}, store, &recordingObserver{})

	_, err := svc.GetCard(context.Background(), "DEMO")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = svc.GetCard(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFundingAmount(t *testing.T) {
	tests := []struct {
		price, balance int64
		margin         int
		want           int64 // -1 means no funding
	}{
		{200, 50, 10, 165},
		{200, 200, 10, -1},
		{200, 300, 10, -1},
		{101, 100, 10, 2}, // 1.1 rounds up
		{7, 0, 10, 8},     // 7.7 rounds up
		{100, 0, 0, 100},
		{100, 0, 25, 125},
	}

	for _, tt := range tests {
		got := FundingAmount(big.NewInt(tt.price), big.NewInt(tt.balance), tt.margin)
		if tt.want < 0 {
			assert.Nil(t, got)
			continue
		}
		assert.Equal(t, big.NewInt(tt.want), got, "price %d balance %d", tt.price, tt.balance)
	}
}

func TestFundingAmount_LargeValues(t *testing.T) {
	price, _ := new(big.Int).SetString("1000000000000000000000", 10)
	got := FundingAmount(price, big.NewInt(0), 10)
	assert.Equal(t, "1100000000000000000000", got.String())
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "unknown", ErrorKind(errors.New("x")))
	assert.Equal(t, "store_unavailable", ErrorKind(ErrStoreUnavailable))
	assert.Equal(t, "storage_network_timeout", ErrorKind(ErrStorageNetworkTimeout))
	assert.Equal(t, "funding_not_registered", ErrorKind(ErrFundingNotRegistered))
}
