// Package watchlist holds the ordered, de-duplicated list of ticker
// symbols a dashboard is following.
package watchlist

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrEmptySymbol = errors.New("watchlist: empty symbol")
	ErrDuplicate   = errors.New("watchlist: symbol already present")
	ErrNotFound    = errors.New("watchlist: symbol not present")
)

// Default is the list a fresh dashboard starts with.
var Default = []string{"AAPL", "GOOGL", "MSFT", "AMZN", "META"}

// Normalize trims and upper-cases a user supplied symbol.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// List is an ordered set of symbols. The zero value is empty and usable.
// List is not safe for concurrent use.
type List struct {
	symbols []string
}

// New builds a list from symbols, normalizing them and dropping blanks
// and duplicates while keeping first-seen order.
func New(symbols ...string) *List {
	l := &List{}
	for _, s := range symbols {
		_ = l.Add(s)
	}
	return l
}

// Symbols returns a copy of the current list.
func (l *List) Symbols() []string { return slices.Clone(l.symbols) }

func (l *List) Len() int { return len(l.symbols) }

func (l *List) Contains(symbol string) bool {
	return slices.Contains(l.symbols, Normalize(symbol))
}

// Add appends symbol unless it is blank or already present.
func (l *List) Add(symbol string) error {
	s := Normalize(symbol)
	if s == "" {
		return ErrEmptySymbol
	}
	if slices.Contains(l.symbols, s) {
		return fmt.Errorf("%w: %s", ErrDuplicate, s)
	}
	l.symbols = append(l.symbols, s)
	return nil
}

// Remove deletes symbol from the list.
func (l *List) Remove(symbol string) error {
	s := Normalize(symbol)
	i := slices.Index(l.symbols, s)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, s)
	}
	l.symbols = slices.Delete(l.symbols, i, i+1)
	return nil
}

// Replace swaps in a whole new list, with the same cleanup as New.
func (l *List) Replace(symbols []string) {
	*l = *New(symbols...)
}

// Equal reports whether l holds exactly symbols, in order.
func (l *List) Equal(symbols []string) bool {
	return slices.Equal(l.symbols, symbols)
}
