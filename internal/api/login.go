package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// loginResp accepts tokens at the top level or inside the usual data envelope.
type loginResp struct {
	tokenPair
	Data *tokenPair `json:"data"`
}

// Login exchanges admin credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	body, err := c.send(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   loginBody{Username: username, Password: password},
	})
	if err != nil {
		return nil, withFallback(err, "Login failed")
	}

	var resp loginResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	pair := resp.tokenPair
	if pair.AccessToken == "" && resp.Data != nil {
		pair = *resp.Data
	}
	if pair.AccessToken == "" {
		return nil, errors.New("login response carried no access token")
	}
	return newToken(pair.AccessToken, pair.RefreshToken), nil
}
