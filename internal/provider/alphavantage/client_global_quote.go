package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
)

var (
	// ErrRateLimited is returned when the API answers with its usage notice
	// instead of data.
	ErrRateLimited = errors.New("alphavantage: rate limited")
	// ErrEmptyQuote is returned when the response carries no quote payload.
	ErrEmptyQuote = errors.New("alphavantage: empty quote")
)

// GlobalQuote is the raw GLOBAL_QUOTE payload. Values are kept as the
// strings the API sends; callers decide how to parse them.
type GlobalQuote struct {
	Symbol        string `json:"01. symbol"`
	Open          string `json:"02. open"`
	High          string `json:"03. high"`
	Low           string `json:"04. low"`
	Price         string `json:"05. price"`
	Volume        string `json:"06. volume"`
	LatestDay     string `json:"07. latest trading day"`
	PreviousClose string `json:"08. previous close"`
	Change        string `json:"09. change"`
	ChangePercent string `json:"10. change percent"`
}

type globalQuoteResponse struct {
	GlobalQuote map[string]json.RawMessage `json:"Global Quote"`
	Information string                     `json:"Information"`
	Note        string                     `json:"Note"`
	ErrorMsg    string                     `json:"Error Message"`
}

// GetGlobalQuote retrieves the latest quote for one symbol.
func (c *Client) GetGlobalQuote(ctx context.Context, symbol string, opts ...ClientOption) (GlobalQuote, error) {
	b, err := c.Raw(ctx, symbol, opts...)
	if err != nil {
		return GlobalQuote{}, err
	}

	var body globalQuoteResponse
	if err := json.Unmarshal(b, &body); err != nil {
		return GlobalQuote{}, fmt.Errorf("decoding global quote response: %w", err)
	}

	// {
	//   "Information": "Thank you for using Alpha Vantage! ... API key ..."
	// }
	if strings.Contains(body.Information, "API key") || strings.Contains(body.Note, "API key") {
		return GlobalQuote{}, ErrRateLimited
	}
	if len(body.GlobalQuote) == 0 {
		if body.ErrorMsg != "" {
			return GlobalQuote{}, fmt.Errorf("%w: %s", ErrEmptyQuote, body.ErrorMsg)
		}
		return GlobalQuote{}, ErrEmptyQuote
	}

	// {
	//   "01. symbol": "MSFT",
	//   "05. price": "338.1100",
	//   "09. change": "3.2200",
	//   "10. change percent": "0.9600%"
	// }
	q := body.GlobalQuote
	return GlobalQuote{
		Symbol:        field(q, "01. symbol"),
		Open:          field(q, "02. open"),
		High:          field(q, "03. high"),
		Low:           field(q, "04. low"),
		Price:         field(q, "05. price"),
		Volume:        field(q, "06. volume"),
		LatestDay:     field(q, "07. latest trading day"),
		PreviousClose: field(q, "08. previous close"),
		Change:        field(q, "09. change"),
		ChangePercent: field(q, "10. change percent"),
	}, nil
}

// field returns one quote value as text. Strings are unquoted, bare
// numbers keep their literal form, anything else becomes "".
func field(q map[string]json.RawMessage, key string) string {
	raw, ok := q[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Raw performs the GLOBAL_QUOTE request and returns the undecoded body.
func (c *Client) Raw(ctx context.Context, symbol string, opts ...ClientOption) ([]byte, error) {
	var override = &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		query:      c.query,
	}
	for _, opt := range opts {
		opt(override)
	}

	query := maps.Clone(override.query)
	query.Set("function", "GLOBAL_QUOTE")
	query.Set("symbol", symbol)

	url := fmt.Sprintf("%s/query?%s", override.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case res.StatusCode < 200 || res.StatusCode >= 300:
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return b, nil
}
