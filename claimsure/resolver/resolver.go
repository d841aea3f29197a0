// Package resolver maps free-text procedure names to canonical catalog
// entries using a composite of semantic and lexical similarity.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/claimsure/claimsure-app/claimsure/models"
	"github.com/claimsure/claimsure-app/conf"
	"github.com/sirupsen/logrus"
)

// ErrEmptyCatalog indicates the semantic index has no candidates to offer.
// This is a configuration problem (unseeded catalog), not a per-claim error.
var ErrEmptyCatalog = errors.New("procedure catalog is empty; seed procedures before adjudication")

// Candidate is one semantic search hit. Distance is the collaborator's raw
// distance score; smaller is closer.
type Candidate struct {
	Entry    models.ProcedureCatalogEntry
	Distance float64
}

// SemanticSearcher returns the k nearest catalog entries for a query.
type SemanticSearcher interface {
	TopK(ctx context.Context, query string, k int) ([]Candidate, error)
}

// LexicalScorer rates the literal similarity of two strings on a 0-100 scale.
type LexicalScorer interface {
	Ratio(query, candidate string) int
}

type Config struct {
	TopK           int     `conf:"RESOLVER_TOP_K" conf_default:"4"`
	SemanticWeight float64 `conf:"RESOLVER_SEMANTIC_WEIGHT" conf_default:"0.6"`
	LexicalWeight  float64 `conf:"RESOLVER_LEXICAL_WEIGHT" conf_default:"0.4"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := conf.Checkout(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Match is the winning catalog entry plus the per-candidate scoring trace
// kept for audit output.
type Match struct {
	CanonicalName  string
	Category       string
	ReferencePrice float64
	Trace          string
}

type Resolver struct {
	searcher SemanticSearcher
	lexical  LexicalScorer
	cfg      Config
	logger   logrus.FieldLogger
}

func New(searcher SemanticSearcher, lexical LexicalScorer, cfg Config, logger logrus.FieldLogger) *Resolver {
	if lexical == nil {
		lexical = TokenSortRatio{}
	}
	if cfg.TopK == 0 {
		cfg.TopK = 4
	}
	if cfg.SemanticWeight == 0 && cfg.LexicalWeight == 0 {
		cfg.SemanticWeight, cfg.LexicalWeight = 0.6, 0.4
	}
	return &Resolver{searcher: searcher, lexical: lexical, cfg: cfg, logger: logger}
}

// Resolve scores the top-K semantic candidates against the raw query and
// returns the best composite match. Pure given a catalog snapshot and a
// deterministic searcher; performs no writes. Ties keep the first-seen
// candidate.
func (r *Resolver) Resolve(ctx context.Context, freeText string) (*Match, error) {
	hits, err := r.searcher.TopK(ctx, freeText, r.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("semantic search for %q failed: %v", freeText, err)
	}
	if len(hits) == 0 {
		return nil, ErrEmptyCatalog
	}

	var (
		best      *models.ProcedureCatalogEntry
		bestScore = -1.0
		trace     []string
	)
	for i := range hits {
		entry := hits[i].Entry
		lexical := r.lexical.Ratio(freeText, entry.Name)
		semantic := 1.0 / (1.0 + hits[i].Distance)
		composite := r.cfg.SemanticWeight*semantic + r.cfg.LexicalWeight*(float64(lexical)/100.0)

		trace = append(trace, fmt.Sprintf("%s: sem=%.3f semN=%.3f fz=%d -> %.3f",
			entry.Name, hits[i].Distance, semantic, lexical, composite))

		if composite > bestScore {
			bestScore = composite
			best = &hits[i].Entry
		}
	}

	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"query":   freeText,
			"matched": best.Name,
			"score":   bestScore,
		}).Debug("resolved procedure")
	}

	return &Match{
		CanonicalName:  best.Name,
		Category:       best.Category,
		ReferencePrice: best.ReferencePrice,
		Trace:          strings.Join(trace, "\n"),
	}, nil
}
