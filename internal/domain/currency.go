package domain

import (
	"slices"
	"strings"
)

// Currency - валюта чаевых.
type Currency string

const (
	CurrencyNGN  Currency = "NGN"
	CurrencyHIVE Currency = "HIVE"
	CurrencyHBD  Currency = "HBD"
)

var currencies = []Currency{CurrencyNGN, CurrencyHIVE, CurrencyHBD}

// Valid сообщает, входит ли валюта в поддерживаемый набор.
func (c Currency) Valid() bool {
	return slices.Contains(currencies, c)
}

// ParseCurrency нормализует код валюты.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", ErrInvalidCurrency
	}
	return c, nil
}
