package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/maplepath-ai/maplepath/internal/domain"
)

// assemblerStrings holds the language-specific fragments of the context
// block. English and French are supported; anything else falls back to
// English.
type assemblerStrings struct {
	header        string
	sourceLabel   string
	relevance     string
	entitiesTitle string
	relatedTitle  string
	confidence    string
	closing       string
}

var assemblerLocales = map[string]assemblerStrings{
	"en": {
		header:        "Relevant information from the immigration knowledge base:",
		sourceLabel:   "Source",
		relevance:     "relevance",
		entitiesTitle: "Known entities related to this question:",
		relatedTitle:  "Connected concepts:",
		confidence:    "confidence",
		closing: "Use the context above to answer. Cite the sources you rely on. " +
			"If the context does not cover the question, say so explicitly and " +
			"make clear that your answer relies on general knowledge rather " +
			"than the curated knowledge base.",
	},
	"fr": {
		header:        "Informations pertinentes de la base de connaissances en immigration :",
		sourceLabel:   "Source",
		relevance:     "pertinence",
		entitiesTitle: "Entités connues liées à cette question :",
		relatedTitle:  "Concepts connexes :",
		confidence:    "confiance",
		closing: "Utilisez le contexte ci-dessus pour répondre. Citez les sources " +
			"utilisées. Si le contexte ne couvre pas la question, dites-le " +
			"explicitement et précisez que votre réponse repose sur des " +
			"connaissances générales plutôt que sur la base de connaissances.",
	},
}

func localeFor(lang string) assemblerStrings {
	tag := strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	if loc, ok := assemblerLocales[tag]; ok {
		return loc
	}
	return assemblerLocales["en"]
}

// normalizeScorePercent renders a score as a 0-100 percentage. Scores
// above 1 are treated as already percent-scale; scores in [0, 1] are
// fractions. Reranker and raw-similarity scales therefore render the
// same way.
func normalizeScorePercent(score float64) float64 {
	if score > 1 {
		return score
	}
	return score * 100
}

// BuildKnowledgeContext renders a retrieval result into the bounded text
// block handed to the generation layer. Deterministic for identical
// inputs. Returns the empty string when the result has neither chunks
// nor entities; callers must treat that as "no context available", not
// as an error.
func BuildKnowledgeContext(result *domain.RetrievalResult, lang string) string {
	if result == nil || result.IsEmpty() {
		return ""
	}

	loc := localeFor(lang)
	var b strings.Builder

	b.WriteString(loc.header)
	b.WriteString("\n\n")

	for i, chunk := range result.Chunks {
		fmt.Fprintf(&b, "[%d] (%s: %.1f%%) %s\n", i+1, loc.relevance,
			normalizeScorePercent(chunk.Similarity), strings.TrimSpace(chunk.Content))
		if chunk.SourceURL != "" {
			fmt.Fprintf(&b, "    %s: %s\n", loc.sourceLabel, chunk.SourceURL)
		}
		b.WriteString("\n")
	}

	if len(result.Entities) > 0 {
		b.WriteString(loc.entitiesTitle)
		b.WriteString("\n")
		for _, entity := range result.Entities {
			fmt.Fprintf(&b, "- %s (%s, %s: %.1f%%)\n", entity.Label(), entity.Type,
				loc.confidence, normalizeScorePercent(entity.Confidence))
			writeProperties(&b, entity.Properties)
		}
		b.WriteString("\n")
	}

	if len(result.RelatedEntities) > 0 {
		b.WriteString(loc.relatedTitle)
		b.WriteString("\n")
		for _, related := range result.RelatedEntities {
			if related.Entity == nil || related.Relationship == nil {
				continue
			}
			fmt.Fprintf(&b, "- %s (%s, %s)\n", related.Entity.Label(),
				related.Entity.Type, related.Relationship.Type)
		}
		b.WriteString("\n")
	}

	b.WriteString(loc.closing)
	b.WriteString("\n")
	return b.String()
}

// writeProperties renders the non-nil entries of a property bag with
// keys sorted, so identical inputs always produce identical output.
func writeProperties(b *strings.Builder, properties map[string]any) {
	if len(properties) == 0 {
		return
	}
	keys := make([]string, 0, len(properties))
	for key, value := range properties {
		if value == nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(b, "    %s: %v\n", key, properties[key])
	}
}
