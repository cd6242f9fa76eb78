package aggregate

import (
    "sort"
    "strings"

    "stockdash/internal/provider"
)

// SortKey names a sortable quote column.
type SortKey string

const (
    BySymbol        SortKey = "symbol"
    ByPrice         SortKey = "price"
    ByChange        SortKey = "change"
    ByChangePercent SortKey = "changePercent"
)

// keyAliases normalizes the spellings the dashboard and API clients use.
var keyAliases = map[string]SortKey{
    "":               BySymbol,
    "symbol":         BySymbol,
    "price":          ByPrice,
    "change":         ByChange,
    "changepercent":  ByChangePercent,
    "change_percent": ByChangePercent,
    "pct":            ByChangePercent,
}

// ParseSortKey maps a user supplied column name to a SortKey.
func ParseSortKey(s string) (SortKey, bool) {
    k, ok := keyAliases[strings.ToLower(strings.TrimSpace(s))]
    return k, ok
}

// Filter keeps quotes whose symbol contains term, case-insensitively.
// An empty term keeps everything.
func Filter(quotes []provider.Quote, term string) []provider.Quote {
    term = strings.ToUpper(strings.TrimSpace(term))
    out := make([]provider.Quote, 0, len(quotes))
    for _, q := range quotes {
        if term == "" || strings.Contains(strings.ToUpper(q.Symbol), term) {
            out = append(out, q)
        }
    }
    return out
}

// Sort returns a sorted copy of quotes. Ties are broken by symbol so the
// order is stable across polls.
func Sort(quotes []provider.Quote, key SortKey, desc bool) []provider.Quote {
    out := make([]provider.Quote, len(quotes))
    copy(out, quotes)
    value := func(q provider.Quote) float64 {
        switch key {
        case ByPrice:
            return q.Price
        case ByChange:
            return q.Change
        case ByChangePercent:
            return q.ChangePercent
        }
        return 0
    }
    sort.SliceStable(out, func(i, j int) bool {
        a, b := out[i], out[j]
        if key != BySymbol {
            if va, vb := value(a), value(b); va != vb {
                if desc { return va > vb }
                return va < vb
            }
        }
        if desc && key == BySymbol { return a.Symbol > b.Symbol }
        return a.Symbol < b.Symbol
    })
    return out
}

// Series is the bar chart input: one label and price per quote.
type Series struct {
    Labels []string  `json:"labels"`
    Prices []float64 `json:"prices"`
}

// Chart builds a Series in quote order.
func Chart(quotes []provider.Quote) Series {
    s := Series{Labels: make([]string, 0, len(quotes)), Prices: make([]float64, 0, len(quotes))}
    for _, q := range quotes {
        s.Labels = append(s.Labels, q.Symbol)
        s.Prices = append(s.Prices, q.Price)
    }
    return s
}
