package chatbot

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/lox/laundrydesk/internal/models"
)

// DefaultMatchThreshold is the minimum cosine similarity for a FAQ match.
const DefaultMatchThreshold = 0.2

// KeywordBot matches a message to the closest FAQ question using TF-IDF
// vectors and cosine similarity.
type KeywordBot struct {
	threshold float64

	mu    sync.RWMutex
	index *tfidfIndex
}

// NewKeywordBot indexes the knowledge base now and after every reload.
func NewKeywordBot(kb *KnowledgeBase, threshold float64) *KeywordBot {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	b := &KeywordBot{threshold: threshold, index: buildIndex(nil)}
	kb.OnReload(b.setFAQs)
	return b
}

func (b *KeywordBot) Name() string { return "keyword" }

func (b *KeywordBot) setFAQs(faqs []models.FAQ) {
	idx := buildIndex(faqs)
	b.mu.Lock()
	b.index = idx
	b.mu.Unlock()
}

func (b *KeywordBot) Reply(_ context.Context, message string) (string, error) {
	b.mu.RLock()
	idx := b.index
	b.mu.RUnlock()

	faq, score, ok := idx.best(message)
	if !ok || score < b.threshold {
		return Fallback, nil
	}
	return faq.Answer, nil
}

type tfidfIndex struct {
	faqs    []models.FAQ
	idf     map[string]float64
	vectors []map[string]float64
}

// buildIndex uses smoothed idf, ln((1+n)/(1+df)) + 1, with L2-normalised
// vectors so a dot product is the cosine similarity.
func buildIndex(faqs []models.FAQ) *tfidfIndex {
	docs := make([][]string, len(faqs))
	df := make(map[string]int)
	for i, f := range faqs {
		docs[i] = tokenize(f.Question)
		seen := make(map[string]bool)
		for _, tok := range docs[i] {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}

	n := float64(len(faqs))
	idf := make(map[string]float64, len(df))
	for tok, d := range df {
		idf[tok] = math.Log((1+n)/(1+float64(d))) + 1
	}

	idx := &tfidfIndex{faqs: faqs, idf: idf, vectors: make([]map[string]float64, len(faqs))}
	for i, doc := range docs {
		idx.vectors[i] = idx.vectorize(doc)
	}
	return idx
}

func (idx *tfidfIndex) vectorize(tokens []string) map[string]float64 {
	vec := make(map[string]float64)
	for _, tok := range tokens {
		if w, ok := idx.idf[tok]; ok {
			vec[tok] += w
		}
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for tok := range vec {
		vec[tok] /= norm
	}
	return vec
}

func (idx *tfidfIndex) best(message string) (models.FAQ, float64, bool) {
	if len(idx.faqs) == 0 {
		return models.FAQ{}, 0, false
	}
	query := idx.vectorize(tokenize(message))
	if len(query) == 0 {
		return models.FAQ{}, 0, false
	}

	bestIdx, bestScore := -1, 0.0
	for i, vec := range idx.vectors {
		var dot float64
		for tok, q := range query {
			dot += q * vec[tok]
		}
		if dot > bestScore {
			bestIdx, bestScore = i, dot
		}
	}
	if bestIdx < 0 {
		return models.FAQ{}, 0, false
	}
	return idx.faqs[bestIdx], bestScore, true
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
