package services

import (
	"context"

	"subnet-rentd/core/common"
)

type ratesClient struct {
	*httpClient
}

// NewRatesClient talks to the exchange-rate service.
func NewRatesClient(baseURL string) Rates {
	return &ratesClient{newHTTPClient(baseURL)}
}

type rateRequest struct {
	Base      string           `json:"base_asset"`
	Quote     string           `json:"quote_asset"`
	Timestamp common.Timestamp `json:"timestamp,omitempty"`
}

func (c *ratesClient) GetRate(ctx context.Context, base, quote string, ts common.Timestamp) (Rate, error) {
	var reply Rate
	if err := c.postJSON(ctx, "/v1/rate", &rateRequest{
		Base:      base,
		Quote:     quote,
		Timestamp: ts,
	}, &reply); err != nil {
		return Rate{}, err
	}
	return reply, nil
}
