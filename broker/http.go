package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"optionsdesk/apperrors"
	"optionsdesk/market"
)

const defaultHTTPTimeout = 10 * time.Second

// HTTPBroker pulls snapshots from an upstream market-data vendor over
// plain JSON/HTTP. The fetch activity owns the retry cadence; this
// client does a single bounded attempt per call.
type HTTPBroker struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	index     string
	connected atomic.Bool
}

// NewHTTPBroker builds an HTTPBroker for the configured index symbol.
func NewHTTPBroker(baseURL, apiKey, index string) *HTTPBroker {
	return &HTTPBroker{
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		baseURL: baseURL,
		apiKey:  apiKey,
		index:   index,
	}
}

// Connect verifies the vendor is reachable. The client is otherwise
// stateless, so connect is a health probe rather than a session.
func (b *HTTPBroker) Connect(ctx context.Context) error {
	var probe struct {
		Status string `json:"status"`
	}
	if err := b.get(ctx, "/health", &probe); err != nil {
		return err
	}
	b.connected.Store(true)
	return nil
}

func (b *HTTPBroker) Disconnect() error {
	b.connected.Store(false)
	return nil
}

func (b *HTTPBroker) IsConnected() bool {
	return b.connected.Load()
}

func (b *HTTPBroker) GetSpot(ctx context.Context) (market.Spot, error) {
	var out market.Spot
	err := b.get(ctx, fmt.Sprintf("/v1/index/%s/spot", b.index), &out)
	return out, err
}

func (b *HTTPBroker) GetFutures(ctx context.Context) (market.Futures, error) {
	var out market.Futures
	err := b.get(ctx, fmt.Sprintf("/v1/index/%s/futures", b.index), &out)
	return out, err
}

func (b *HTTPBroker) GetOptionsChain(ctx context.Context, strikesAroundATM int) (market.OptionsChain, error) {
	if strikesAroundATM <= 0 {
		strikesAroundATM = DefaultStrikesAroundATM
	}
	var out market.OptionsChain
	err := b.get(ctx, fmt.Sprintf("/v1/index/%s/options?strikes=%d", b.index, strikesAroundATM), &out)
	return out, err
}

func (b *HTTPBroker) GetVIX(ctx context.Context) (market.VIX, error) {
	var out market.VIX
	err := b.get(ctx, "/v1/vix", &out)
	return out, err
}

// GetMarketSnapshot fetches the atomic snapshot in one vendor round
// trip, stamping it with the spot timestamp when the vendor left the
// snapshot timestamp unset.
func (b *HTTPBroker) GetMarketSnapshot(ctx context.Context) (market.Snapshot, error) {
	var out market.Snapshot
	if err := b.get(ctx, fmt.Sprintf("/v1/index/%s/snapshot?strikes=%d", b.index, DefaultStrikesAroundATM), &out); err != nil {
		return market.Snapshot{}, err
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = out.Spot.Timestamp
	}
	return out, nil
}

func (b *HTTPBroker) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.DataUnavailable, "building vendor request", err)
	}
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.DataUnavailable, "vendor request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.New(apperrors.DataUnavailable,
			fmt.Sprintf("vendor returned %d for %s: %s", resp.StatusCode, path, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(apperrors.DataIncomplete, "decoding vendor response", err)
	}
	return nil
}
