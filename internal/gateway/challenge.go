package gateway

import (
	"context"
	"time"

	"idv/internal/challenge"
	id "idv/pkg/domain"
)

// IssuerClient implements challenge.Issuer over HTTP.
type IssuerClient struct {
	*Client
}

// NewIssuerClient wraps a backend client as a challenge issuer.
func NewIssuerClient(c *Client) *IssuerClient {
	return &IssuerClient{Client: c}
}

type challengeRequest struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
}

type challengeResponse struct {
	Token          string    `json:"challenge_token"`
	Kind           string    `json:"kind"`
	ExpiresAt      time.Time `json:"expires_at"`
	RetryNotBefore time.Time `json:"retry_not_before"`
}

func (c *IssuerClient) RequestChallenge(ctx context.Context, kind challenge.Kind, destination string) (*challenge.Challenge, error) {
	var resp challengeResponse
	err := c.post(ctx, "/hosted/challenge", "", challengeRequest{
		Kind:        string(kind),
		Destination: destination,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &challenge.Challenge{
		Token:          id.ChallengeToken(resp.Token),
		Kind:           challenge.Kind(resp.Kind),
		ExpiresAt:      resp.ExpiresAt,
		RetryNotBefore: resp.RetryNotBefore,
	}, nil
}

type verifyRequest struct {
	Token    string `json:"challenge_token"`
	Response string `json:"challenge_response"`
}

type verifyResponse struct {
	AuthToken string `json:"auth_token"`
}

func (c *IssuerClient) VerifyChallenge(ctx context.Context, token id.ChallengeToken, response string) (string, error) {
	var resp verifyResponse
	err := c.post(ctx, "/hosted/challenge/verify", "", verifyRequest{
		Token:    string(token),
		Response: response,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.AuthToken, nil
}

var _ challenge.Issuer = (*IssuerClient)(nil)
