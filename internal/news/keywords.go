package news

import (
	"strings"
	"unicode"
)

// coinNames maps ticker symbols to the name used in news queries.
var coinNames = map[string]string{
	"btc":  "bitcoin",
	"eth":  "ethereum",
	"doge": "dogecoin",
	"sol":  "solana",
	"bnb":  "binance coin",
	"xrp":  "ripple",
	"ada":  "cardano",
	"dot":  "polkadot",
	"ltc":  "litecoin",
	"link": "chainlink",
}

var genericTerms = map[string]string{
	"crypto":         "cryptocurrency",
	"cryptocurrency": "cryptocurrency",
	"blockchain":     "blockchain",
	"defi":           "defi",
	"nft":            "nft",
	"stablecoin":     "stablecoin",
	"altcoin":        "altcoin",
}

// ambiguousSymbols are tickers that are also common English words; they only
// match through the coin's full name.
var ambiguousSymbols = map[string]struct{}{
	"dot":  {},
	"link": {},
	"sol":  {},
}

var termIndex = buildTermIndex()

func buildTermIndex() map[string]string {
	index := make(map[string]string, len(coinNames)*2+len(genericTerms))
	for symbol, name := range coinNames {
		if _, ok := ambiguousSymbols[symbol]; !ok {
			index[symbol] = name
		}
		for _, part := range strings.Fields(name) {
			if part != "coin" {
				index[part] = name
			}
		}
	}
	for term, canonical := range genericTerms {
		index[term] = canonical
	}
	return index
}

// ExtractKeywords picks the crypto terms mentioned in a user query, in order
// of first appearance. Queries that mention no known term yield nil.
func ExtractKeywords(query string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	tokens := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if term, ok := termIndex[tok]; ok {
			add(term)
		}
	}
	return out
}

// CoinName returns the full name for a ticker symbol.
func CoinName(symbol string) (string, bool) {
	name, ok := coinNames[strings.ToLower(symbol)]
	return name, ok
}
