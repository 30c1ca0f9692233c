package marketdata

import "time"

// Quote is a point-in-time stock quote.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PrevClose     float64   `json:"prev_close"`
	Timestamp     time.Time `json:"timestamp"`
}

// Candle is one OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// CandlesRequest describes a candle series fetch.
type CandlesRequest struct {
	Symbol   string `json:"symbol" validate:"required"`
	Interval string `json:"interval" validate:"required,oneof=1m 5m 15m 1h 4h 1d 1w"`
	Limit    int    `json:"limit" validate:"min=1,max=1000"`
}

// CryptoPrice is a point-in-time crypto pair price.
type CryptoPrice struct {
	Pair          string    `json:"pair"`
	Price         float64   `json:"price"`
	Volume24h     float64   `json:"volume_24h"`
	ChangePct24h  float64   `json:"change_pct_24h"`
	Timestamp     time.Time `json:"timestamp"`
}

// candlesResponse is the upstream wire shape for the candles endpoint.
type candlesResponse struct {
	Symbol  string   `json:"symbol"`
	Candles []Candle `json:"candles"`
}
