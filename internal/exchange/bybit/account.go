package bybit

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

type Balance struct {
	Coin   string
	Wallet decimal.Decimal
	Equity decimal.Decimal
}

// Balance читает баланс единого счёта. В live-режиме сверяется с учётным капиталом при старте.
func (c *Client) Balance(ctx context.Context, coin string) (Balance, error) {
	params := url.Values{}
	params.Set("accountType", "UNIFIED")
	if coin != "" {
		params.Set("coin", coin)
	}

	var resp bybitResponse[walletBalance]
	if err := c.doRequest(ctx, http.MethodGet, "/v5/account/wallet-balance", params, nil, true, &resp); err != nil {
		return Balance{}, err
	}

	for _, account := range resp.Result.List {
		for _, item := range account.Coin {
			if coin != "" && item.Coin != coin {
				continue
			}
			wallet, _ := parseDecimalOrZero(item.WalletBalance)
			equity, _ := parseDecimalOrZero(item.Equity)
			if equity.IsZero() {
				equity = wallet
			}
			return Balance{Coin: item.Coin, Wallet: wallet, Equity: equity}, nil
		}
	}
	return Balance{Coin: coin}, nil
}
