package api

import (
	"context"
	"fmt"
	"net/url"
)

// Subscriptions lists the user's active offers
func (c *Client) Subscriptions(ctx context.Context) ([]UserOffer, error) {
	var subs []UserOffer
	if err := c.get(ctx, PathSubscriptions, &subs); err != nil {
		return nil, fmt.Errorf("[api Subscriptions] %w", err)
	}
	return subs, nil
}

func (c *Client) Transaction(ctx context.Context, transactionID string) (*Transaction, error) {
	var tx Transaction
	if err := c.get(ctx, pathf(PathTransaction, transactionID), &tx); err != nil {
		return nil, fmt.Errorf("[api Transaction] %w", err)
	}
	return &tx, nil
}

// Transactions lists the user's transactions, optionally filtered by status
func (c *Client) Transactions(ctx context.Context, status Status) ([]Transaction, error) {
	path := PathTransactions
	if status != "" {
		path += "?" + url.Values{"status": {string(status)}}.Encode()
	}
	var txs []Transaction
	if err := c.get(ctx, path, &txs); err != nil {
		return nil, fmt.Errorf("[api Transactions] %w", err)
	}
	return txs, nil
}

func (c *Client) Balance(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.get(ctx, PathBalance, &account); err != nil {
		return nil, fmt.Errorf("[api Balance] %w", err)
	}
	return &account, nil
}
