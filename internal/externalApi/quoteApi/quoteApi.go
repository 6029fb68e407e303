package quoteApi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/KotFed0t/paper_trading_bot/config"
	"github.com/KotFed0t/paper_trading_bot/internal/externalApi"
	"github.com/KotFed0t/paper_trading_bot/internal/model"
	"github.com/KotFed0t/paper_trading_bot/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// QuoteApi fetches current prices from the Yahoo Finance v8 chart endpoint.
type QuoteApi struct {
	client *resty.Client
}

type rawChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

func New(cfg *config.Config) *QuoteApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.QuoteApi.Url).
		SetHeader("User-Agent", "paper_trading_bot/1.0")
	return &QuoteApi{client: client}
}

func (a *QuoteApi) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	url := fmt.Sprintf("/v8/finance/chart/%s", symbol)
	params := map[string]string{
		"interval": "1m",
		"range":    "1d",
	}

	slog.Debug("start QuoteApi.GetQuote request", slog.String("rqID", rqID), slog.String("symbol", symbol))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing QuoteApi", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.Quote{}, err
	}

	if resp.StatusCode() == http.StatusNotFound {
		slog.Warn("symbol not found in QuoteApi", slog.String("rqID", rqID), slog.String("symbol", symbol))
		return model.Quote{}, externalApi.ErrNotFound
	}

	if resp.StatusCode() != http.StatusOK {
		slog.Error("unexpected status from QuoteApi", slog.Int("status", resp.StatusCode()), slog.String("rqID", rqID))
		return model.Quote{}, fmt.Errorf("quote api status %d", resp.StatusCode())
	}

	raw := rawChart{}
	err = json.Unmarshal(resp.Body(), &raw)
	if err != nil {
		slog.Error("can't unmarshal response into rawChart", slog.String("err", err.Error()), slog.String("rqID", rqID))
		return model.Quote{}, err
	}

	quote, err := a.parseRawChart(raw, symbol)
	if err != nil {
		if !errors.Is(err, externalApi.ErrNotFound) {
			slog.Error("can't parse raw chart", slog.String("err", err.Error()), slog.String("rqID", rqID))
		}
		return model.Quote{}, err
	}

	slog.Debug("QuoteApi.GetQuote request complete", slog.String("rqID", rqID))

	return quote, nil
}

func (a *QuoteApi) parseRawChart(raw rawChart, symbol string) (model.Quote, error) {
	if len(raw.Chart.Result) == 0 {
		return model.Quote{}, externalApi.ErrNotFound
	}

	result := raw.Chart.Result[0]
	price := result.Meta.RegularMarketPrice

	// fallback to the last non-zero close when meta carries no price
	if price <= 0 && len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] > 0 {
				price = closes[i]
				break
			}
		}
	}

	if price <= 0 {
		return model.Quote{}, externalApi.ErrNotFound
	}

	return model.Quote{
		Symbol: symbol,
		Price:  decimal.NewFromFloat(price).Round(2),
	}, nil
}
