package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	legPrefix      = "LEG"
	tpPrefix       = "TP"
	catchupPrefix  = "CATCHUP"
	tpRebuildSufix = "REBUILD"
	maxClientIDLen = 32
)

// symkey is the first 12 alphanumeric characters of symbol, used to keep
// generated client order ids short and collision-resistant across symbols.
func symkey(symbol string) string {
	var b strings.Builder
	for _, r := range symbol {
		if b.Len() >= 12 {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncateID(id string) string {
	if len(id) > maxClientIDLen {
		return id[:maxClientIDLen]
	}
	return id
}

// legClientID generates the deterministic client order id for a DCA leg at
// price. Determinism is load-bearing: a retried placement after a transient
// failure reproduces the same id and is rejected as a duplicate by the
// exchange rather than doubling exposure.
func legClientID(symbol string, price decimal.Decimal) string {
	scaled := price.Mul(decimal.New(1, 4)).Floor()
	return truncateID(fmt.Sprintf("%s%s%s", legPrefix, symkey(symbol), scaled.String()))
}

// tpClientIDForLeg derives a leg's TP client id from its own LEG client id.
func tpClientIDForLeg(legCID string) string {
	without := strings.TrimPrefix(legCID, legPrefix)
	return truncateID(tpPrefix + without)
}

func catchupClientID(symbol string, price decimal.Decimal) string {
	scaled := price.Mul(decimal.New(1, 2)).Floor()
	return truncateID(fmt.Sprintf("%s%s%s", catchupPrefix, symkey(symbol), scaled.String()))
}

func tpRebuildClientID(symbol string) string {
	return truncateID(tpPrefix + symkey(symbol) + tpRebuildSufix)
}

func hasLegPrefix(clientOrderID string) bool {
	return strings.HasPrefix(clientOrderID, legPrefix)
}

func hasTPPrefix(clientOrderID string) bool {
	return strings.HasPrefix(clientOrderID, tpPrefix)
}
