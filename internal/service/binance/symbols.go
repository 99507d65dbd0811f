package binance

import "strings"

// Exchange is the venue name stamped on every event from this feed.
const Exchange = "binance"

// StreamSymbol maps BTC-USDT to the lower-case stream form btcusdt.
func StreamSymbol(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(symbol, "-", ""))
}

// RESTSymbol maps BTC-USDT to the REST form BTCUSDT.
func RESTSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
}

// streamNames lists the combined-stream names for one symbol.
func streamNames(symbol string) []string {
	s := StreamSymbol(symbol)
	return []string{s + "@depth@100ms", s + "@ticker", s + "@trade"}
}

// snapshotLimit picks the smallest REST depth limit that covers depth.
func snapshotLimit(depth int) int {
	for _, l := range []int{5, 10, 20, 50, 100, 500, 1000, 5000} {
		if depth <= l {
			return l
		}
	}
	return 5000
}
