package broker

import (
	"context"
	"math"
	"sync"
	"time"

	"optionsdesk/market"
)

const strikeStep = 100 // Bank Nifty strike spacing

// StubBroker is the development implementation: a deterministic sine
// drift around a base level, with a synthetic but internally consistent
// options chain. Tests drive it by setting the price directly.
type StubBroker struct {
	mu        sync.Mutex
	connected bool

	index string
	price float64
	open  float64
	high  float64
	low   float64
	vix   float64
	vol   int64
	tick  int

	// Clock is swappable so tests can pin snapshot timestamps.
	Clock func() time.Time
}

// NewStubBroker starts the walk at the given level.
func NewStubBroker(index string, startPrice float64) *StubBroker {
	return &StubBroker{
		index: index,
		price: startPrice,
		open:  startPrice,
		high:  startPrice,
		low:   startPrice,
		vix:   14.0,
		Clock: time.Now,
	}
}

// SetPrice pins the walk to an exact level (test hook).
func (b *StubBroker) SetPrice(p float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.price = p
	b.high = math.Max(b.high, p)
	b.low = math.Min(b.low, p)
}

func (b *StubBroker) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

func (b *StubBroker) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	return nil
}

func (b *StubBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// step advances the deterministic walk: a slow sine drift so every
// regime shows up eventually during development.
func (b *StubBroker) step() {
	b.tick++
	drift := 25 * math.Sin(float64(b.tick)/40)
	b.price += drift
	b.high = math.Max(b.high, b.price)
	b.low = math.Min(b.low, b.price)
	b.vol += 50_000
	b.vix = 14 + 2*math.Sin(float64(b.tick)/90)
}

func (b *StubBroker) GetSpot(ctx context.Context) (market.Spot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.step()
	return b.spotLocked(), nil
}

func (b *StubBroker) spotLocked() market.Spot {
	return market.Spot{
		Symbol: b.index,
		LTP:    b.price,
		Session: market.OHLCV{
			Open: b.open, High: b.high, Low: b.low, Close: b.price, Volume: b.vol,
		},
		PreviousClose: b.open * 0.998,
		Timestamp:     b.Clock(),
	}
}

func (b *StubBroker) GetFutures(ctx context.Context) (market.Futures, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.futuresLocked(), nil
}

func (b *StubBroker) futuresLocked() market.Futures {
	return market.Futures{
		Symbol: b.index + "-FUT",
		Price:  b.price + 30, // steady positive basis
		Session: market.OHLCV{
			Open: b.open + 30, High: b.high + 30, Low: b.low + 30, Close: b.price + 30, Volume: b.vol / 2,
		},
		OI:        12_000_000,
		OIChange:  int64(5_000 * math.Sin(float64(b.tick)/25)),
		Expiry:    b.Clock().AddDate(0, 0, 7),
		Timestamp: b.Clock(),
	}
}

func (b *StubBroker) GetOptionsChain(ctx context.Context, strikesAroundATM int) (market.OptionsChain, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if strikesAroundATM <= 0 {
		strikesAroundATM = DefaultStrikesAroundATM
	}
	return b.chainLocked(strikesAroundATM), nil
}

func (b *StubBroker) chainLocked(strikesAroundATM int) market.OptionsChain {
	atm := math.Round(b.price/strikeStep) * strikeStep
	chain := market.OptionsChain{
		Underlying: b.index,
		SpotRef:    b.price,
		ATMStrike:  atm,
		Expiry:     b.Clock().AddDate(0, 0, 7),
	}

	iv := b.vix + 1
	for i := -strikesAroundATM; i <= strikesAroundATM; i++ {
		strike := atm + float64(i)*strikeStep
		dist := math.Abs(strike - b.price)

		callPrice := math.Max(b.price-strike, 0) + 180*math.Exp(-dist/400)
		putPrice := math.Max(strike-b.price, 0) + 180*math.Exp(-dist/400)
		oi := int64(150_000 * math.Exp(-dist/500))

		chain.Calls = append(chain.Calls, market.OptionLeg{
			Strike: strike, Type: market.CE, Price: callPrice,
			Bid: callPrice - 1, Ask: callPrice + 1,
			OI: oi, OIChange: int64(2_000 * math.Cos(float64(b.tick)/30)),
			Volume: oi / 10,
			Greeks: market.Greeks{Delta: deltaFor(b.price, strike, true), IV: iv},
		})
		chain.Puts = append(chain.Puts, market.OptionLeg{
			Strike: strike, Type: market.PE, Price: putPrice,
			Bid: putPrice - 1, Ask: putPrice + 1,
			OI: oi, OIChange: int64(2_500 * math.Cos(float64(b.tick)/30)),
			Volume: oi / 10,
			Greeks: market.Greeks{Delta: deltaFor(b.price, strike, false), IV: iv + 0.5},
		})
	}
	return chain
}

// deltaFor is a crude logistic moneyness curve, good enough for a
// development chain.
func deltaFor(spot, strike float64, call bool) float64 {
	x := (spot - strike) / 300
	d := 1 / (1 + math.Exp(-2*x))
	if call {
		return d
	}
	return d - 1
}

func (b *StubBroker) GetVIX(ctx context.Context) (market.VIX, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.vixLocked(), nil
}

func (b *StubBroker) vixLocked() market.VIX {
	return market.VIX{
		Value:         b.vix,
		PreviousClose: 14.0,
		Session: market.OHLCV{
			Open: 14, High: math.Max(14, b.vix), Low: math.Min(14, b.vix), Close: b.vix,
		},
		Timestamp: b.Clock(),
	}
}

func (b *StubBroker) GetMarketSnapshot(ctx context.Context) (market.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.step()
	now := b.Clock()
	return market.Snapshot{
		Spot:         b.spotLocked(),
		Futures:      b.futuresLocked(),
		OptionsChain: b.chainLocked(DefaultStrikesAroundATM),
		VIX:          b.vixLocked(),
		Timestamp:    now,
	}, nil
}
