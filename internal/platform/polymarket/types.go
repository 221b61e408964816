package polymarket

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/polysignal/engine/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string. Gamma sends
// volume and liquidity both ways depending on the endpoint.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// stringSlice unmarshals from a JSON array of strings or from a JSON string
// that itself encodes such an array. Gamma's clobTokenIds and outcomePrices
// are double-encoded on most endpoints.
type stringSlice []string

func (s *stringSlice) UnmarshalJSON(data []byte) error {
	var direct []string
	if err := json.Unmarshal(data, &direct); err == nil {
		*s = direct
		return nil
	}
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	if encoded == "" {
		*s = nil
		return nil
	}
	var nested []string
	if err := json.Unmarshal([]byte(encoded), &nested); err != nil {
		return err
	}
	*s = nested
	return nil
}

// floats parses each element as a float, dropping unparseable entries.
func (s stringSlice) floats() []float64 {
	out := make([]float64, 0, len(s))
	for _, v := range s {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APITag is a tag entry on a Gamma event.
type APITag struct {
	Label string `json:"label"`
}

// APIEvent represents an event as returned by the Gamma API. An event groups
// one or more related markets; neg-risk groups arrive as multi-market events.
type APIEvent struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Slug      string      `json:"slug"`
	Category  string      `json:"category"`
	Active    flexBool    `json:"active"`
	Closed    flexBool    `json:"closed"`
	NegRisk   bool        `json:"negRisk"`
	Volume24h flexFloat   `json:"volume24hr"`
	Liquidity flexFloat   `json:"liquidity"`
	Tags      []APITag    `json:"tags"`
	Markets   []APIMarket `json:"markets"`
	EndDate   string      `json:"endDate"`
}

// APIMarket represents a market nested inside a Gamma event.
type APIMarket struct {
	ConditionID        string      `json:"conditionId"`
	Question           string      `json:"question"`
	Slug               string      `json:"slug"`
	Category           string      `json:"category"`
	Active             flexBool    `json:"active"`
	Closed             flexBool    `json:"closed"`
	Volume             flexFloat   `json:"volumeNum"`
	Volume24h          flexFloat   `json:"volume24hr"`
	Volume1wk          flexFloat   `json:"volume1wk"`
	Volume1mo          flexFloat   `json:"volume1mo"`
	Liquidity          flexFloat   `json:"liquidityNum"`
	BestBid            flexFloat   `json:"bestBid"`
	BestAsk            flexFloat   `json:"bestAsk"`
	Spread             flexFloat   `json:"spread"`
	OneHourPriceChange flexFloat   `json:"oneHourPriceChange"`
	OneDayPriceChange  flexFloat   `json:"oneDayPriceChange"`
	OneWeekPriceChange flexFloat   `json:"oneWeekPriceChange"`
	NegRisk            bool        `json:"negRisk"`
	NegRiskMarketID    string      `json:"negRiskMarketID"`
	Outcomes           stringSlice `json:"outcomes"`
	OutcomePrices      stringSlice `json:"outcomePrices"`
	ClobTokenIDs       stringSlice `json:"clobTokenIds"`
	EndDate            string      `json:"endDate"`
}

// ToSnapshot flattens a Gamma market into a domain snapshot, falling back to
// event-level fields where the market omits them.
func (m *APIMarket) ToSnapshot(event *APIEvent, now time.Time) domain.MarketSnapshot {
	snap := domain.MarketSnapshot{
		ConditionID:    m.ConditionID,
		Question:       m.Question,
		Slug:           m.Slug,
		Category:       m.Category,
		Volume24h:      float64(m.Volume24h),
		Volume7d:       float64(m.Volume1wk),
		Volume30d:      float64(m.Volume1mo),
		Liquidity:      float64(m.Liquidity),
		PriceChange1h:  float64(m.OneHourPriceChange),
		PriceChange24h: float64(m.OneDayPriceChange),
		PriceChange7d:  float64(m.OneWeekPriceChange),
		BestBid:        float64(m.BestBid),
		BestAsk:        float64(m.BestAsk),
		Spread:         float64(m.Spread),
		NegRisk:        m.NegRisk,
		NegRiskGroupID: m.NegRiskMarketID,
		OutcomePrices:  m.OutcomePrices.floats(),
		TokenIDs:       []string(m.ClobTokenIDs),
		FetchedAt:      now,
		UpdatedAt:      now,
	}

	if bool(m.Closed) || (event != nil && bool(event.Closed)) {
		snap.Status = domain.MarketStatusClosed
	} else {
		snap.Status = domain.MarketStatusActive
	}

	if len(snap.OutcomePrices) > 0 {
		snap.CurrentPrice = snap.OutcomePrices[0]
	}

	if event != nil {
		if snap.Question == "" {
			snap.Question = event.Title
		}
		if snap.Category == "" {
			snap.Category = event.Category
		}
		if !snap.NegRisk && event.NegRisk {
			snap.NegRisk = true
		}
		if snap.NegRisk && snap.NegRiskGroupID == "" {
			snap.NegRiskGroupID = event.ID
		}
		for _, tag := range event.Tags {
			if tag.Label != "" {
				snap.Tags = append(snap.Tags, tag.Label)
			}
		}
	}

	return snap
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIBookLevel is a single price level in a CLOB book response.
type APIBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is the CLOB /book (and /books element) response shape.
type APIBook struct {
	Market    string         `json:"market"`
	AssetID   string         `json:"asset_id"`
	Timestamp string         `json:"timestamp"`
	Bids      []APIBookLevel `json:"bids"`
	Asks      []APIBookLevel `json:"asks"`
}

// ToSnapshot converts a CLOB book into a domain snapshot with bids sorted
// descending and asks ascending. Depth and imbalance are left for the caller.
func (b *APIBook) ToSnapshot() domain.OrderbookSnapshot {
	snap := domain.OrderbookSnapshot{
		TokenID:  b.AssetID,
		MarketID: b.Market,
	}

	for _, lvl := range b.Bids {
		p, perr := strconv.ParseFloat(lvl.Price, 64)
		s, serr := strconv.ParseFloat(lvl.Size, 64)
		if perr != nil || serr != nil {
			continue
		}
		snap.Bids = append(snap.Bids, domain.PriceLevel{Price: p, Size: s})
	}
	for _, lvl := range b.Asks {
		p, perr := strconv.ParseFloat(lvl.Price, 64)
		s, serr := strconv.ParseFloat(lvl.Size, 64)
		if perr != nil || serr != nil {
			continue
		}
		snap.Asks = append(snap.Asks, domain.PriceLevel{Price: p, Size: s})
	}

	sort.Slice(snap.Bids, func(i, j int) bool { return snap.Bids[i].Price > snap.Bids[j].Price })
	sort.Slice(snap.Asks, func(i, j int) bool { return snap.Asks[i].Price < snap.Asks[j].Price })

	if len(snap.Bids) > 0 {
		snap.BestBid = snap.Bids[0].Price
	}
	if len(snap.Asks) > 0 {
		snap.BestAsk = snap.Asks[0].Price
	}
	if snap.BestBid > 0 && snap.BestAsk > 0 {
		snap.MidPrice = (snap.BestBid + snap.BestAsk) / 2
		snap.Spread = snap.BestAsk - snap.BestBid
	}

	if ts, err := strconv.ParseInt(b.Timestamp, 10, 64); err == nil {
		// CLOB timestamps are milliseconds.
		snap.Timestamp = time.UnixMilli(ts)
	} else if t, err := time.Parse(time.RFC3339, b.Timestamp); err == nil {
		snap.Timestamp = t
	} else {
		snap.Timestamp = time.Now()
	}

	return snap
}

// historyResponse wraps the CLOB /prices-history payload.
type historyResponse struct {
	History []HistoryPoint `json:"history"`
}

// HistoryPoint is one sample of a token's traded price history.
type HistoryPoint struct {
	T int64     `json:"t"` // unix seconds
	P flexFloat `json:"p"`
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// APITrade represents a trade as returned by the Polymarket Data API.
type APITrade struct {
	ProxyWallet     string    `json:"proxyWallet"`
	Side            string    `json:"side"`
	Asset           string    `json:"asset"`
	ConditionID     string    `json:"conditionId"`
	Size            flexFloat `json:"size"`
	Price           flexFloat `json:"price"`
	Timestamp       flexFloat `json:"timestamp"` // unix seconds
	TransactionHash string    `json:"transactionHash"`
}

// ToDomainTrade converts a Data API trade into a domain trade. The Data API
// reports the taker wallet only.
func (t *APITrade) ToDomainTrade() domain.Trade {
	trade := domain.Trade{
		MarketID:  t.ConditionID,
		TokenID:   t.Asset,
		Price:     float64(t.Price),
		Size:      float64(t.Size),
		Taker:     t.ProxyWallet,
		Timestamp: time.Unix(int64(t.Timestamp), 0),
	}
	if strings.EqualFold(t.Side, "SELL") {
		trade.Side = domain.TradeSideSell
	} else {
		trade.Side = domain.TradeSideBuy
	}
	return trade
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSCommand is the JSON payload sent to the WebSocket to subscribe.
type WSCommand struct {
	Type     string   `json:"type"`
	AssetIDs []string `json:"assets_ids,omitempty"`
}

// WSBookMessage is a full orderbook snapshot delivered over WebSocket.
type WSBookMessage struct {
	EventType string         `json:"event_type"`
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Timestamp string         `json:"timestamp"`
	Bids      []APIBookLevel `json:"bids"`
	Asks      []APIBookLevel `json:"asks"`
}

// WSTradeMessage is the last traded price for an asset.
type WSTradeMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"`
	Timestamp string `json:"timestamp"`
}

// LastTrade is the normalized form of a WebSocket last-trade message.
type LastTrade struct {
	TokenID   string
	MarketID  string
	Price     float64
	Size      float64
	Side      string
	Timestamp time.Time
}

// ToLastTrade converts a WebSocket trade message to a LastTrade.
func (m *WSTradeMessage) ToLastTrade() LastTrade {
	lt := LastTrade{
		TokenID:  m.AssetID,
		MarketID: m.Market,
		Side:     m.Side,
	}
	lt.Price, _ = strconv.ParseFloat(m.Price, 64)
	lt.Size, _ = strconv.ParseFloat(m.Size, 64)

	if ts, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		lt.Timestamp = time.UnixMilli(ts)
	} else {
		lt.Timestamp = time.Now()
	}
	return lt
}

// ToSnapshot converts a WebSocket book message to a domain snapshot.
func (m *WSBookMessage) ToSnapshot() domain.OrderbookSnapshot {
	book := APIBook{
		Market:    m.Market,
		AssetID:   m.AssetID,
		Timestamp: m.Timestamp,
		Bids:      m.Bids,
		Asks:      m.Asks,
	}
	return book.ToSnapshot()
}
