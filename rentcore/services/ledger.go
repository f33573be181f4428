package services

import (
	"context"

	"subnet-rentd/core/common"
)

type ledgerClient struct {
	*httpClient
}

// NewLedgerClient talks to the settlement-currency ledger service.
func NewLedgerClient(baseURL string) Ledger {
	return &ledgerClient{newHTTPClient(baseURL)}
}

type transferRequest struct {
	From   string      `json:"from_subaccount"`
	To     string      `json:"to_account"`
	Amount common.Coin `json:"amount"`
	Fee    common.Coin `json:"fee"`
	Memo   string      `json:"memo"`
}

type transferReply struct {
	Block common.TxnRef `json:"block"`
}

func (c *ledgerClient) Transfer(ctx context.Context, from, to string, amount, fee common.Coin, memo string) (common.TxnRef, error) {
	var reply transferReply
	if err := c.postJSON(ctx, "/v1/transfer", &transferRequest{
		From:   from,
		To:     to,
		Amount: amount,
		Fee:    fee,
		Memo:   memo,
	}, &reply); err != nil {
		return 0, err
	}
	return reply.Block, nil
}
