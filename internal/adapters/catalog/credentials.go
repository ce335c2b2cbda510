package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ClientCredentials fetches app tokens with the OAuth client credentials grant.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// FetchToken implements TokenFetcher.
func (cc ClientCredentials) FetchToken(ctx context.Context) (Token, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cc.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(cc.ClientID, cc.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := cc.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		record("token", outcomeError, start)
		return Token{}, fmt.Errorf("%w: token request: %v", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		record("token", outcomeError, start)
		return Token{}, err
	}

	var body tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		record("token", outcomeError, start)
		return Token{}, fmt.Errorf("%w: decode token: %v", ErrUpstream, err)
	}
	record("token", outcomeOK, start)
	return Token{AccessToken: body.AccessToken, ExpiresIn: time.Duration(body.ExpiresIn) * time.Second}, nil
}
