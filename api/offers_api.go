package api

import (
	"context"
	"fmt"
)

type offerRequest struct {
	OfferID OfferID `json:"offer_id"`
}

// ListOffers returns every offer in backend order
func (c *Client) ListOffers(ctx context.Context) ([]Offer, error) {
	var offers []Offer
	if err := c.get(ctx, PathOffers, &offers); err != nil {
		return nil, fmt.Errorf("[api ListOffers] %w", err)
	}
	return offers, nil
}

func (c *Client) GetOffer(ctx context.Context, id OfferID) (*Offer, error) {
	var offer Offer
	if err := c.get(ctx, pathf(PathOffer, id.String()), &offer); err != nil {
		return nil, fmt.Errorf("[api GetOffer] %w", err)
	}
	return &offer, nil
}

// ActivateOffer queues an activation. The backend rejects inactive offers (404) and
// insufficient balances (400) with an "error" message.
func (c *Client) ActivateOffer(ctx context.Context, id OfferID) (*ActivationResponse, error) {
	var resp ActivationResponse
	if err := c.post(ctx, PathActivate, offerRequest{OfferID: id}, &resp); err != nil {
		return nil, fmt.Errorf("[api ActivateOffer] %w", err)
	}
	if resp.TransactionID == "" {
		return nil, fmt.Errorf("[api ActivateOffer] response carried no transaction id")
	}
	if resp.Status == "" {
		resp.Status = StatusPending
	}
	return &resp, nil
}

func (c *Client) ActivationStatus(ctx context.Context, transactionID string) (*ActivationStatus, error) {
	var status ActivationStatus
	if err := c.get(ctx, pathf(PathActivationStatus, transactionID), &status); err != nil {
		return nil, fmt.Errorf("[api ActivationStatus] %w", err)
	}
	if status.TransactionID == "" {
		status.TransactionID = transactionID
	}
	return &status, nil
}

// ExpiringOffers lists the user's active offers expiring within the backend's window (3 days)
func (c *Client) ExpiringOffers(ctx context.Context) ([]UserOffer, error) {
	var offers []UserOffer
	if err := c.get(ctx, PathOffersExpiring, &offers); err != nil {
		return nil, fmt.Errorf("[api ExpiringOffers] %w", err)
	}
	return offers, nil
}

// RenewOffer queues a renewal, tracked exactly like an activation
func (c *Client) RenewOffer(ctx context.Context, id OfferID) (*ActivationResponse, error) {
	var resp ActivationResponse
	if err := c.post(ctx, PathOffersRenew, offerRequest{OfferID: id}, &resp); err != nil {
		return nil, fmt.Errorf("[api RenewOffer] %w", err)
	}
	if resp.TransactionID == "" {
		return nil, fmt.Errorf("[api RenewOffer] response carried no transaction id")
	}
	if resp.Status == "" {
		resp.Status = StatusPending
	}
	return &resp, nil
}
