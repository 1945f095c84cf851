package upstream

import (
	"context"
	"fmt"

	"github.com/yourorg/tokendash/internal/config"
	"github.com/yourorg/tokendash/internal/model"
	"github.com/yourorg/tokendash/internal/validation"
)

// TokenAPI wraps the DEX pool endpoint that quotes the platform token.
type TokenAPI struct {
	baseURL string
	http    *HTTPClient
}

// NewTokenAPI creates a token price client from configuration.
func NewTokenAPI(cfg config.Config) *TokenAPI {
	return &TokenAPI{
		baseURL: cfg.TokenAPIURL,
		http:    NewHTTPClient(cfg.RequestTimeout),
	}
}

var tokenSchema = validation.Schema{
	{Name: "price_usd", Kind: validation.KindFloat, Required: true},
	{Name: "price_change_24h", Kind: validation.KindFloat, Default: 0.0},
	{Name: "market_cap", Kind: validation.KindFloat, Default: 0.0},
	{Name: "volume_24h", Kind: validation.KindFloat, Default: 0.0},
	{Name: "circulating_supply", Kind: validation.KindFloat, Default: 0.0},
	{Name: "total_supply", Kind: validation.KindFloat, Default: 0.0},
}

// Price fetches the current pool quote for the token.
func (c *TokenAPI) Price(ctx context.Context) model.Result {
	res := c.http.GetJSON(ctx, c.baseURL, "/streamswap/pool/odis", nil)
	if !res.OK() {
		return res
	}

	raw, ok := validation.Dig(res.Payload, "data")
	if !ok {
		// Some deployments return the quote at the top level
		raw = any(res.Payload)
	}
	quote, ok := raw.(map[string]any)
	if !ok {
		return malformed("token price", fmt.Errorf("quote is not an object"))
	}

	fields, err := validation.Coerce(quote, tokenSchema)
	if err != nil {
		return malformed("token price", err)
	}
	return model.Success(fields)
}
