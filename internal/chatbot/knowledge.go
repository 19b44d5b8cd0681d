// Package chatbot answers customer questions from the FAQ table.
package chatbot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lox/laundrydesk/internal/htmlutil"
	"github.com/lox/laundrydesk/internal/models"
	"github.com/lox/laundrydesk/internal/supabase"
)

const (
	BusinessName  = "APIK Laundry"
	AdminWhatsApp = "0816-1709-8435"
)

// FAQLoader fetches the current FAQ entries.
type FAQLoader interface {
	LoadFAQs(ctx context.Context) ([]models.FAQ, error)
}

// Selector is the subset of the table API the loader needs.
type Selector interface {
	Select(ctx context.Context, table string, q supabase.Query, dst any) error
}

// SupabaseFAQs reads the faq table. Entries edited in the dashboard may hold
// HTML, which is reduced to plain text.
type SupabaseFAQs struct {
	db Selector
}

func NewSupabaseFAQs(db Selector) *SupabaseFAQs {
	return &SupabaseFAQs{db: db}
}

func (s *SupabaseFAQs) LoadFAQs(ctx context.Context) ([]models.FAQ, error) {
	var faqs []models.FAQ
	if err := s.db.Select(ctx, "faq", supabase.Query{Order: "id_faq"}, &faqs); err != nil {
		return nil, fmt.Errorf("load faq: %w", err)
	}
	for i := range faqs {
		faqs[i].Question = htmlutil.PlainText(faqs[i].Question)
		faqs[i].Answer = htmlutil.PlainText(faqs[i].Answer)
	}
	return faqs, nil
}

// StaticFAQs serves a fixed list.
type StaticFAQs []models.FAQ

func (s StaticFAQs) LoadFAQs(context.Context) ([]models.FAQ, error) {
	return s, nil
}

// KnowledgeBase holds the FAQ set the responders answer from. Listeners are
// notified after every successful reload.
type KnowledgeBase struct {
	loader FAQLoader

	mu        sync.RWMutex
	faqs      []models.FAQ
	listeners []func([]models.FAQ)
}

func NewKnowledgeBase(loader FAQLoader) *KnowledgeBase {
	return &KnowledgeBase{loader: loader}
}

// OnReload registers fn to receive each newly loaded FAQ set.
func (kb *KnowledgeBase) OnReload(fn func([]models.FAQ)) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.listeners = append(kb.listeners, fn)
	if kb.faqs != nil {
		fn(kb.faqs)
	}
}

// Reload replaces the FAQ set. On error the previous set is kept.
func (kb *KnowledgeBase) Reload(ctx context.Context) (int, error) {
	faqs, err := kb.loader.LoadFAQs(ctx)
	if err != nil {
		return 0, err
	}
	if faqs == nil {
		faqs = []models.FAQ{}
	}

	kb.mu.Lock()
	kb.faqs = faqs
	listeners := append([]func([]models.FAQ){}, kb.listeners...)
	kb.mu.Unlock()

	for _, fn := range listeners {
		fn(faqs)
	}
	return len(faqs), nil
}

func (kb *KnowledgeBase) FAQs() []models.FAQ {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.faqs
}

func (kb *KnowledgeBase) Len() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.faqs)
}

// Context renders the FAQ set as prompt text.
func (kb *KnowledgeBase) Context() string {
	faqs := kb.FAQs()
	if len(faqs) == 0 {
		return "Maaf, data FAQ kosong saat ini."
	}
	var b strings.Builder
	b.WriteString("Berikut adalah informasi resmi tentang " + BusinessName + ":")
	for _, f := range faqs {
		fmt.Fprintf(&b, "\n- Q: %s\n  A: %s", f.Question, f.Answer)
	}
	return b.String()
}
