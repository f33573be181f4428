package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/0chain/errors"
	"go.uber.org/zap"

	"subnet-rentd/core/logging"
)

const clientTimeout = 30 * time.Second

var ErrBadServiceReply = errors.New("bad_service_reply", "external service returned an unparseable reply")

// httpClient is the shared JSON/HTTP plumbing for all external services.
// Error replies carry {code, msg}; the code is rehydrated into the matching
// typed error so errors.Is keeps working across the wire.
type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string) *httpClient {
	transport := &http.Transport{
		Dial: (&net.Dialer{
			Timeout: clientTimeout,
		}).Dial,
		TLSHandshakeTimeout: clientTimeout,
	}
	return &httpClient{
		baseURL: baseURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   clientTimeout,
		},
	}
}

type errorReply struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

var knownErrors = []*errors.Error{
	ErrInsufficientFunds,
	ErrBadFee,
	ErrDuplicateTransfer,
	ErrRateLimited,
	ErrAssetNotFound,
	ErrRatePending,
	ErrInsufficientPayment,
	ErrNotifyFailed,
}

func rehydrateError(code, msg string) error {
	for _, known := range knownErrors {
		if known.Code == code {
			return errors.Throw(known, msg)
		}
	}
	return errors.New(code, msg)
}

func (c *httpClient) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	resBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Throw(ErrBadServiceReply, err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		var er errorReply
		if err := json.Unmarshal(resBody, &er); err != nil || er.Code == "" {
			logging.Logger.Error("[external]"+resp.Status,
				zap.String("url", req.URL.String()), zap.String("response", string(resBody)))
			return errors.Throw(ErrBadServiceReply, req.URL.String()+" "+resp.Status)
		}
		return rehydrateError(er.Code, er.Msg)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resBody, out); err != nil {
		return errors.Throw(ErrBadServiceReply, err.Error())
	}
	return nil
}
