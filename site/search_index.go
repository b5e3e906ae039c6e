package site

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const searchIndexVersion = 1

type searchDoc struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type searchIndex struct {
	Version int              `json:"v"`
	Docs    []searchDoc      `json:"docs"`
	Terms   map[string][]int `json:"terms"`
}

// buildSearchIndex produces an inverted index over page titles, descriptions and content.
// Posting lists hold document ids in ascending order.
func buildSearchIndex(pages []renderedPage) (json.RawMessage, error) {
	index := searchIndex{
		Version: searchIndexVersion,
		Docs:    make([]searchDoc, 0, len(pages)),
		Terms:   make(map[string][]int),
	}

	for docID, pg := range pages {
		index.Docs = append(index.Docs, searchDoc{URL: pg.Route, Title: pg.Title, Description: pg.Description})

		seen := make(map[string]struct{})
		for _, field := range []string{pg.Title, pg.Description, pg.PlainText} {
			for _, token := range tokenize(field) {
				if _, ok := seen[token]; ok {
					continue
				}
				seen[token] = struct{}{}
				index.Terms[token] = append(index.Terms[token], docID)
			}
		}
	}

	for _, postings := range index.Terms {
		sort.Ints(postings)
	}

	data, err := json.Marshal(index)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// tokenize lowercases text, strips combining marks after NFKD decomposition and splits on
// anything that is not a letter or digit. Single letters are dropped.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}
	var (
		tokens  []string
		builder strings.Builder
	)
	flush := func() {
		if builder.Len() == 0 {
			return
		}
		token := builder.String()
		builder.Reset()
		if keepToken(token) {
			tokens = append(tokens, token)
		}
	}
	for _, r := range norm.NFKD.String(text) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func keepToken(token string) bool {
	if len([]rune(token)) > 1 {
		return true
	}
	return token[0] >= '0' && token[0] <= '9'
}
