package api

import (
	"context"

	"github.com/google/uuid"
)

// CreateOrder submits a signed order. The order's signature must already
// be attached by the signing layer. A client order id is generated when
// the caller did not set one.
func (c *Client) CreateOrder(ctx context.Context, order *Order) (*Order, error) {
	if order.Metadata.ClientOrderID == "" {
		order.Metadata.ClientOrderID = uuid.NewString()
	}

	payload := struct {
		Order *Order `json:"order"`
	}{Order: order}

	var out struct {
		Result Order `json:"result"`
	}
	err := c.Do(ctx, EndpointTradeData, "/full/v1/create_order", payload, RequestOptions{RequiresAuth: true}, &out)
	if err != nil {
		return nil, err
	}
	return &out.Result, nil
}

// OpenOrders returns the open orders for a sub-account.
func (c *Client) OpenOrders(ctx context.Context, subAccountID string) ([]Order, error) {
	payload := struct {
		SubAccountID string `json:"sub_account_id"`
	}{SubAccountID: subAccountID}

	var out struct {
		Result []Order `json:"result"`
	}
	err := c.Do(ctx, EndpointTradeData, "/full/v1/open_orders", payload, RequestOptions{RequiresAuth: true}, &out)
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

// CancelOrder cancels a single order by exchange order id.
func (c *Client) CancelOrder(ctx context.Context, subAccountID, orderID string) error {
	payload := struct {
		SubAccountID string `json:"sub_account_id"`
		OrderID      string `json:"order_id"`
	}{SubAccountID: subAccountID, OrderID: orderID}

	return c.Do(ctx, EndpointTradeData, "/full/v1/cancel_order", payload, RequestOptions{RequiresAuth: true}, nil)
}

// CancelAllOrders cancels every open order for a sub-account.
func (c *Client) CancelAllOrders(ctx context.Context, subAccountID string) error {
	payload := struct {
		SubAccountID string `json:"sub_account_id"`
	}{SubAccountID: subAccountID}

	return c.Do(ctx, EndpointTradeData, "/full/v1/cancel_all_orders", payload, RequestOptions{RequiresAuth: true}, nil)
}
