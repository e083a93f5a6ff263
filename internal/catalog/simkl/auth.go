package simkl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// DeviceCode holds the user-facing half of the device authentication flow.
type DeviceCode struct {
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// ErrAuthorizationPending is returned by PollToken while the user has not yet
// approved the device code.
var ErrAuthorizationPending = errors.New("simkl: authorization pending")

// RequestDeviceCode starts the device-code flow and returns the code the user
// must enter at the verification URL.
func (c *Client) RequestDeviceCode(ctx context.Context) (*DeviceCode, error) {
	params := url.Values{}
	params.Set("client_id", c.clientID)

	var code DeviceCode
	if err := c.getJSON(ctx, "/oauth/pin", params, &code); err != nil {
		return nil, fmt.Errorf("request device code: %w", err)
	}
	if code.UserCode == "" {
		return nil, errors.New("simkl returned empty device code")
	}
	if code.Interval <= 0 {
		code.Interval = 5
	}
	return &code, nil
}

type pinStatus struct {
	Result      string `json:"result"`
	AccessToken string `json:"access_token"`
}

// PollToken checks once whether the user approved the device code. It returns
// ErrAuthorizationPending until approval.
func (c *Client) PollToken(ctx context.Context, code *DeviceCode) (string, error) {
	if code == nil || code.UserCode == "" {
		return "", errors.New("device code required")
	}

	params := url.Values{}
	params.Set("client_id", c.clientID)

	var status pinStatus
	if err := c.getJSON(ctx, "/oauth/pin/"+url.PathEscape(code.UserCode), params, &status); err != nil {
		return "", fmt.Errorf("poll device code: %w", err)
	}
	if status.Result != "OK" || status.AccessToken == "" {
		return "", ErrAuthorizationPending
	}
	return status.AccessToken, nil
}

// WaitForToken polls until the user approves the device code, the code
// expires, or the context is canceled.
func (c *Client) WaitForToken(ctx context.Context, code *DeviceCode) (string, error) {
	if code == nil {
		return "", errors.New("device code required")
	}
	deadline := time.Now().Add(time.Duration(code.ExpiresIn) * time.Second)
	interval := time.Duration(code.Interval) * time.Second

	for {
		token, err := c.PollToken(ctx, code)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrAuthorizationPending) {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", errors.New("device code expired before approval")
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
	}
}

// ProbeFunc adapts the client's connectivity check to the monitor's contract.
func (c *Client) ProbeFunc() func(context.Context) bool {
	return c.IsConnected
}
