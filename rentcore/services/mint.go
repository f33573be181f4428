package services

import (
	"context"

	"subnet-rentd/core/common"
)

type mintClient struct {
	*httpClient
}

// NewMintClient talks to the minting authority.
func NewMintClient(baseURL string) Mint {
	return &mintClient{newHTTPClient(baseURL)}
}

type notifyTopUpRequest struct {
	Ref         common.TxnRef   `json:"txn_ref"`
	Beneficiary common.Identity `json:"beneficiary"`
}

type notifyTopUpReply struct {
	Minted common.Resource `json:"minted"`
}

func (c *mintClient) NotifyTopUp(ctx context.Context, ref common.TxnRef, beneficiary common.Identity) (common.Resource, error) {
	var reply notifyTopUpReply
	if err := c.postJSON(ctx, "/v1/notify_top_up", &notifyTopUpRequest{
		Ref:         ref,
		Beneficiary: beneficiary,
	}, &reply); err != nil {
		return 0, err
	}
	return reply.Minted, nil
}

func (c *mintClient) ConversionRate(ctx context.Context) (Rate, error) {
	var reply Rate
	if err := c.postJSON(ctx, "/v1/conversion_rate", struct{}{}, &reply); err != nil {
		return Rate{}, err
	}
	return reply, nil
}
