package api

import "context"

// GetInstruments returns all active instruments.
func (c *Client) GetInstruments(ctx context.Context) ([]Instrument, error) {
	payload := struct {
		IsActive bool `json:"is_active"`
	}{IsActive: true}

	var out struct {
		Result []Instrument `json:"result"`
	}
	err := c.Do(ctx, EndpointMarketData, "/full/v1/instruments", payload, RequestOptions{}, &out)
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

// GetInstrument returns a single instrument by name.
func (c *Client) GetInstrument(ctx context.Context, instrument string) (*Instrument, error) {
	payload := struct {
		Instrument string `json:"instrument"`
	}{Instrument: instrument}

	var out struct {
		Result Instrument `json:"result"`
	}
	err := c.Do(ctx, EndpointMarketData, "/full/v1/instrument", payload, RequestOptions{}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Result, nil
}

// GetMiniTicker returns the latest mini ticker snapshot for an
// instrument.
func (c *Client) GetMiniTicker(ctx context.Context, instrument string) (*MiniTicker, error) {
	payload := struct {
		Instrument string `json:"instrument"`
	}{Instrument: instrument}

	var out struct {
		Result MiniTicker `json:"result"`
	}
	err := c.Do(ctx, EndpointMarketData, "/full/v1/mini", payload, RequestOptions{}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Result, nil
}
