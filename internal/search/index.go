// Package search provides a small, deterministic, concurrency-safe in-memory
// index for ranking short names (usernames) against a query:
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options (Option pattern)
//   - Unicode-aware case folding via golang.org/x/text/cases
//   - Immutable, read-only index after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// A name matches when the folded query is a substring of the folded name.
// Matches are scored with the Jaccard similarity of character trigram sets,
// score = |Q ∩ N| / |Q ∪ N|, so closer and shorter names rank first.
package search

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Entry is one indexed name.
type Entry struct {
	ID   string
	Text string
}

// Result is a ranked entry with its similarity score.
type Result struct {
	ID     string
	Text   string
	Score  float64
	Prefix bool
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minQueryRunes int
	maxDocs       int
	defaultK      int
}

func defaultConfig() config {
	return config{
		minQueryRunes: 1,
		maxDocs:       0,
		defaultK:      20,
	}
}

// WithMinQueryRunes ignores queries shorter than n runes after folding.
func WithMinQueryRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minQueryRunes = n
		}
	}
}

// WithMaxDocs caps the number of indexed entries.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// WithDefaultK sets the result cap used when TopK is called with k <= 0.
func WithDefaultK(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.defaultK = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	id     string
	text   string
	folded string
	grams  map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index over entries. Blank names are skipped.
func NewIndex(entries []Entry, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	docs := make([]doc, 0, len(entries))
	for _, e := range entries {
		t := strings.TrimSpace(normalizeWhitespace(e.Text))
		if t == "" {
			continue
		}
		f := Fold(t)
		docs = append(docs, doc{id: e.ID, text: t, folded: f, grams: trigrams(f)})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

// TopK returns up to k matching entries, best first.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 {
		return nil
	}
	fq := Fold(strings.TrimSpace(normalizeWhitespace(q)))
	if fq == "" || utf8.RuneCountInString(fq) < i.cfg.minQueryRunes {
		return nil
	}
	if k <= 0 {
		k = i.cfg.defaultK
	}
	qGrams := trigrams(fq)

	type scored struct {
		Result
		lenRunes int
	}
	buf := make([]scored, 0, min(k*4, len(i.docs)))
	for _, d := range i.docs {
		if !strings.Contains(d.folded, fq) {
			continue
		}
		over := overlap(qGrams, d.grams)
		union := float64(len(qGrams) + len(d.grams) - over)
		score := 0.0
		if union > 0 {
			score = float64(over) / union
		}
		buf = append(buf, scored{
			Result: Result{
				ID:     d.id,
				Text:   d.text,
				Score:  score,
				Prefix: strings.HasPrefix(d.folded, fq),
			},
			lenRunes: utf8.RuneCountInString(d.text),
		})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		if buf[a].Prefix != buf[b].Prefix {
			return buf[a].Prefix
		}
		if buf[a].lenRunes != buf[b].lenRunes {
			return buf[a].lenRunes < buf[b].lenRunes
		}
		if buf[a].Text != buf[b].Text {
			return buf[a].Text < buf[b].Text
		}
		return buf[a].ID < buf[b].ID
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for i := 0; i < k; i++ {
		out[i] = buf[i].Result
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

// trigrams returns the character trigrams of s padded with one space on each
// side, so one- and two-rune names still produce grams.
func trigrams(s string) map[string]struct{} {
	r := []rune(" " + s + " ")
	out := make(map[string]struct{}, len(r))
	for i := 0; i+3 <= len(r); i++ {
		out[string(r[i:i+3])] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
