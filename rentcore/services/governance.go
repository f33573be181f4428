package services

import (
	"context"

	"subnet-rentd/core/common"
)

type governanceClient struct {
	*httpClient
}

// NewGovernanceClient talks to the governance authority's proposal listing.
func NewGovernanceClient(baseURL string) Governance {
	return &governanceClient{newHTTPClient(baseURL)}
}

type listProposalsRequest struct {
	Since common.Timestamp `json:"since,omitempty"`
}

type listProposalsReply struct {
	Proposals []Proposal `json:"proposals"`
}

func (c *governanceClient) ListAdoptedProposals(ctx context.Context, since common.Timestamp) ([]Proposal, error) {
	var reply listProposalsReply
	if err := c.postJSON(ctx, "/v1/proposals/adopted", &listProposalsRequest{Since: since}, &reply); err != nil {
		return nil, err
	}
	return reply.Proposals, nil
}
