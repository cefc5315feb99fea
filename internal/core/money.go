// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing user-entered amounts into decimals
// and formatting balances for display in the ledger's fixed locale.
package core

import (
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Currency is the ISO code every amount in the ledger is denominated in.
const Currency = "PKR"

// ParseAmount converts user input to a strictly positive decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents, thousands separators and zero are rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("500")    -> 500, nil
//	ParseAmount("12,5")   -> 12.5, nil
//	ParseAmount("-1")     -> error
//	ParseAmount("1.2.3")  -> error
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, p := range parts {
		for _, r := range p {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s = strings.TrimSuffix(s, ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatCurrency renders an amount in rupees, e.g. "₨1,500.00".
func FormatCurrency(amount decimal.Decimal) string {
	minor := amount.Shift(2).Round(0).IntPart()
	return money.New(minor, Currency).Display()
}

// TitleCase capitalizes each word of a display name ("ali KHAN" -> "Ali Khan").
func TitleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
