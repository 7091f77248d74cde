package knowledge

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
)

// factIndex is an in-memory full-text index over the fact log. It lets the
// prompt context surface facts relevant to the current location even after
// they have fallen out of the recency window.
type factIndex struct {
	index bleve.Index
	next  int
}

type factDoc struct {
	Text string `json:"text"`
	Turn int    `json:"turn"`
}

func newFactIndex() (*factIndex, error) {
	mapping := bleve.NewIndexMapping()
	index, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create fact index: %w", err)
	}
	return &factIndex{index: index}, nil
}

// Add indexes one fact. IDs are a running counter; facts are never updated
// in place, only superseded by newer entries ranking on recency-agnostic
// relevance.
func (fi *factIndex) Add(fact string, turn int) error {
	id := fmt.Sprintf("fact-%d", fi.next)
	fi.next++
	return fi.index.Index(id, factDoc{Text: fact, Turn: turn})
}

// Search returns up to n facts matching the query text, best first.
func (fi *factIndex) Search(query string, n int) ([]string, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = n
	req.Fields = []string{"text"}

	result, err := fi.index.Search(req)
	if err != nil {
		return nil, err
	}

	var facts []string
	for _, hit := range result.Hits {
		if text, ok := hit.Fields["text"].(string); ok {
			facts = append(facts, text)
		}
	}
	return facts, nil
}
