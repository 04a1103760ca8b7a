package okx

import "strings"

// ccxtToWS converts the internal canonical symbol form (ccxt-style
// "BASE/QUOTE:QUOTE") into OKX's wire instId form ("BASE-QUOTE-SWAP"). A
// symbol already in wire form (no "/") is returned unchanged.
func ccxtToWS(symbol string) string {
	base, rest, ok := strings.Cut(symbol, "/")
	if !ok {
		return symbol
	}
	quote, _, _ := strings.Cut(rest, ":")
	return base + "-" + quote + "-SWAP"
}

// wsToCCXT is the inverse of ccxtToWS: OKX wire instId ("BASE-QUOTE-SWAP")
// to canonical form ("BASE/QUOTE:QUOTE"). A symbol that isn't a recognized
// SWAP instId is returned unchanged.
func wsToCCXT(symbol string) string {
	parts := strings.Split(symbol, "-")
	if len(parts) != 3 || parts[2] != "SWAP" {
		return symbol
	}
	base, quote := parts[0], parts[1]
	return base + "/" + quote + ":" + quote
}
