package services

import (
	"context"

	"subnet-rentd/core/common"
)

type authDirClient struct {
	*httpClient
}

// NewAuthDirClient talks to the subnet-authorization directory.
func NewAuthDirClient(baseURL string) AuthDirectory {
	return &authDirClient{newHTTPClient(baseURL)}
}

type setAuthorizedRequest struct {
	User    common.Identity   `json:"identity"`
	Subnets []common.Identity `json:"subnet_list"`
}

func (c *authDirClient) SetAuthorizedIdentities(ctx context.Context, user common.Identity, subnets []common.Identity) error {
	return c.postJSON(ctx, "/v1/set_authorized", &setAuthorizedRequest{
		User:    user,
		Subnets: subnets,
	}, nil)
}
