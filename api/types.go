package api

// Instrument describes a tradable contract. Prices and sizes are
// decimal strings.
type Instrument struct {
	Instrument         string `json:"instrument"`
	InstrumentHash     string `json:"instrument_hash"`
	Base               string `json:"base"`
	Quote              string `json:"quote"`
	Kind               string `json:"kind"` // "PERPETUAL", "FUTURE", "CALL", "PUT"
	TickSize           string `json:"tick_size"`
	MinSize            string `json:"min_size"`
	BaseDecimals       int    `json:"base_decimals"`
	QuoteDecimals      int    `json:"quote_decimals"`
	CreateTime         string `json:"create_time"`
	MaxPositionSize    string `json:"max_position_size"`
	IsActive           bool   `json:"is_active"`
	VenueOrderPriority int    `json:"venue_order_priority,omitempty"`
}

// MiniTicker is a lightweight ticker snapshot.
type MiniTicker struct {
	EventTime    string `json:"event_time"`
	Instrument   string `json:"instrument"`
	MarkPrice    string `json:"mark_price"`
	IndexPrice   string `json:"index_price"`
	LastPrice    string `json:"last_price"`
	LastSize     string `json:"last_size"`
	MidPrice     string `json:"mid_price"`
	BestBidPrice string `json:"best_bid_price"`
	BestBidSize  string `json:"best_bid_size"`
	BestAskPrice string `json:"best_ask_price"`
	BestAskSize  string `json:"best_ask_size"`
}

// OrderLeg is one (instrument, size, price) component of an order.
type OrderLeg struct {
	Instrument    string `json:"instrument"`
	Size          string `json:"size"`
	LimitPrice    string `json:"limit_price"`
	IsBuyingAsset bool   `json:"is_buying_asset"`
}

// Signature is the EIP-712 signature attached to an order. Produced by
// the signer collaborator; this transport never inspects it.
type Signature struct {
	Signer     string `json:"signer"`
	R          string `json:"r"`
	S          string `json:"s"`
	V          int    `json:"v"`
	Expiration string `json:"expiration"` // nanosecond timestamp string
	Nonce      uint32 `json:"nonce"`
}

// OrderMetadata carries client-side order identity.
type OrderMetadata struct {
	ClientOrderID string `json:"client_order_id"`
	CreateTime    string `json:"create_time,omitempty"`
}

// Order is an order submission or snapshot.
type Order struct {
	OrderID      string        `json:"order_id,omitempty"`
	SubAccountID string        `json:"sub_account_id"`
	TimeInForce  string        `json:"time_in_force"` // "GOOD_TILL_TIME", "IMMEDIATE_OR_CANCEL", ...
	PostOnly     bool          `json:"post_only"`
	ReduceOnly   bool          `json:"reduce_only"`
	Legs         []OrderLeg    `json:"legs"`
	Signature    Signature     `json:"signature"`
	Metadata     OrderMetadata `json:"metadata"`
	State        *OrderState   `json:"state,omitempty"`
}

// OrderState is the exchange-reported lifecycle of an order.
type OrderState struct {
	Status         string   `json:"status"`
	RejectReason   string   `json:"reject_reason,omitempty"`
	BookSize       []string `json:"book_size,omitempty"`
	TradedSize     []string `json:"traded_size,omitempty"`
	UpdateTime     string   `json:"update_time,omitempty"`
	AvgFillPrice   []string `json:"avg_fill_price,omitempty"`
	CancelledSize  []string `json:"cancelled_size,omitempty"`
	RemainingSize  []string `json:"remaining_size,omitempty"`
}
