package okx

import "strings"

// ccxtToWS converts the internal canonical symbol form (ccxt-style
// "BASE/QUOTE:QUOTE", e.g. "BTC/USDT:USDT") into OKX's wire instId form
// ("BASE-QUOTE-SWAP", e.g. "BTC-USDT-SWAP"). A symbol that is already in
// wire form (no "/") is returned unchanged, so every call site can apply it
// unconditionally regardless of which form the caller holds.
func ccxtToWS(symbol string) string {
	base, rest, ok := strings.Cut(symbol, "/")
	if !ok {
		return symbol
	}
	quote, _, _ := strings.Cut(rest, ":")
	return base + "-" + quote + "-SWAP"
}

// wsToCCXT is the inverse of ccxtToWS: it converts an OKX wire instId
// ("BASE-QUOTE-SWAP") into the internal canonical form ("BASE/QUOTE:QUOTE").
// A symbol that isn't a recognized SWAP instId is returned unchanged.
func wsToCCXT(symbol string) string {
	parts := strings.Split(symbol, "-")
	if len(parts) != 3 || parts[2] != "SWAP" {
		return symbol
	}
	base, quote := parts[0], parts[1]
	return base + "/" + quote + ":" + quote
}
