// Package stage5 groups titled clips into thematic collections with one
// LLM call, a keyword-based pre-cluster hint, and a three-level fallback
// chain when the LLM result is thin.
//
// Grounded on original_source/src/pipeline/step5_clustering.py
// (ClusteringEngine.cluster_clips/_pre_cluster_by_keywords/
// _validate_collections/_create_collections_from_pre_clusters/
// _create_default_collections) and spec §4.5 S5's explicit three-step
// fallback chain (LLM -> pre-cluster -> score-tier).
package stage5

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/clipforge/pipeline/internal/config"
	"github.com/clipforge/pipeline/internal/domain"
	"github.com/clipforge/pipeline/internal/llm"
	"github.com/clipforge/pipeline/internal/platform/logger"
	"github.com/clipforge/pipeline/internal/text"
)

const minValidatedCollections = 3

// Input bundles what S5 needs.
type Input struct {
	Clips                 []domain.TitledClip
	Prompt                string
	MaxClipsPerCollection int
	MaxRetries            int
}

// clipView is the reduced shape handed to the LLM and to pre-clustering.
type clipView struct {
	ID      string
	Title   string
	Summary string
	Score   float64
}

// Run clusters clips into collections, falling back through the
// pre-cluster table and then score-tier buckets if the LLM result is
// thin or unusable.
func Run(ctx context.Context, p llm.Provider, in Input, log *logger.Logger) ([]domain.Collection, error) {
	if len(in.Clips) == 0 {
		return nil, nil
	}
	maxPerCollection := in.MaxClipsPerCollection
	if maxPerCollection <= 0 {
		maxPerCollection = domain.MaxClipsPerCollection
	}

	views := make([]clipView, 0, len(in.Clips))
	for _, c := range in.Clips {
		views = append(views, clipView{ID: c.ID, Title: c.GeneratedTitle, Summary: c.RecommendReason, Score: c.FinalScore})
	}

	preClusters := preClusterByKeywords(views)
	prompt := buildPrompt(in.Prompt, views, preClusters)

	candidates := text.CandidatesFromTitledClips(in.Clips)

	response, err := llm.CallWithRetry(ctx, p, prompt, nil, in.MaxRetries)
	if err == nil && response != "" {
		if parsed, perr := llm.ParseJSON(response); perr == nil {
			if validated := validateCollections(parsed, candidates, maxPerCollection); len(validated) >= minValidatedCollections {
				return validated, nil
			}
		}
	} else if log != nil {
		log.Warn("stage5: clustering LLM call failed, falling back to pre-clusters", "error", errString(err))
	}

	if fromPreClusters := collectionsFromPreClusters(preClusters, maxPerCollection); len(fromPreClusters) > 0 {
		return fromPreClusters, nil
	}

	return defaultCollections(in.Clips, maxPerCollection), nil
}

func buildPrompt(base string, views []clipView, preClusters map[int][]string) string {
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\nHere is the list of video clips:\n")
	for i, v := range views {
		fmt.Fprintf(&sb, "%d. Title: %s\n   Summary: %s\n   Score: %.2f\n\n", i+1, v.Title, v.Summary, v.Score)
	}
	if len(preClusters) > 0 {
		sb.WriteString("\nKeyword-based pre-cluster hint (for reference only):\n")
		for _, themeIndex := range sortedKeys(preClusters) {
			theme := config.Preclusters[themeIndex]
			fmt.Fprintf(&sb, "%s: %s\n", theme.Title, strings.Join(preClusters[themeIndex], ", "))
		}
	}
	return sb.String()
}

// preClusterByKeywords maps each clip to at most one theme bucket (the
// one with the highest keyword-match count, themes keyed by index since
// more than one theme shares a domain.Category), then drops buckets with
// fewer than two members.
func preClusterByKeywords(views []clipView) map[int][]string {
	buckets := make(map[int][]string)
	for _, v := range views {
		haystack := strings.ToLower(v.Title + " " + v.Summary)
		bestTheme := -1
		bestScore := 0
		for themeIndex, theme := range config.Preclusters {
			score := 0
			for _, kw := range theme.Keywords {
				if strings.Contains(haystack, strings.ToLower(kw)) {
					score++
				}
			}
			if score > bestScore {
				bestScore = score
				bestTheme = themeIndex
			}
		}
		if bestTheme >= 0 {
			buckets[bestTheme] = append(buckets[bestTheme], v.ID)
		}
	}
	for themeIndex, ids := range buckets {
		if len(ids) < 2 {
			delete(buckets, themeIndex)
		}
	}
	return buckets
}

func collectionsFromPreClusters(preClusters map[int][]string, maxPerCollection int) []domain.Collection {
	var out []domain.Collection
	id := 1
	for _, themeIndex := range sortedKeys(preClusters) {
		theme := config.Preclusters[themeIndex]
		clipIDs := preClusters[themeIndex]
		if len(clipIDs) > maxPerCollection {
			clipIDs = clipIDs[:maxPerCollection]
		}
		out = append(out, domain.Collection{
			ID:                strconv.Itoa(id),
			CollectionTitle:   theme.Title,
			CollectionSummary: theme.Summary,
			ClipIDs:           clipIDs,
			CollectionType:    domain.CollectionAIRecommended,
		})
		id++
	}
	return out
}

func sortedKeys(m map[int][]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// validateCollections resolves each collection's title list to durable
// clip ids via the Text Matcher, drops collections with fewer than 2
// resolved clips, and truncates oversized ones to the first N in LLM
// order.
func validateCollections(parsed any, candidates []text.Candidate, maxPerCollection int) []domain.Collection {
	arr, ok := parsed.([]any)
	if !ok {
		return nil
	}

	var out []domain.Collection
	for _, raw := range arr {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		title, hasTitle := obj["collection_title"].(string)
		summary, hasSummary := obj["collection_summary"].(string)
		clipsRaw, hasClips := obj["clips"].([]any)
		if !hasTitle || !hasSummary || !hasClips {
			continue
		}

		var clipIDs []string
		for _, cr := range clipsRaw {
			clipTitle, ok := cr.(string)
			if !ok {
				continue
			}
			if id, _, found := text.Resolve(clipTitle, candidates); found {
				clipIDs = append(clipIDs, id)
			}
		}

		if len(clipIDs) < 2 {
			continue
		}
		if len(clipIDs) > maxPerCollection {
			clipIDs = clipIDs[:maxPerCollection]
		}

		out = append(out, domain.Collection{
			ID:                strconv.Itoa(len(out) + 1),
			CollectionTitle:   title,
			CollectionSummary: summary,
			ClipIDs:           clipIDs,
			CollectionType:    domain.CollectionAIRecommended,
		})
	}
	return out
}

// defaultCollections buckets clips by score tier: >=0.8 -> "top picks",
// >=0.6 -> "recommended", each only if it has at least 2 members.
func defaultCollections(clips []domain.TitledClip, maxPerCollection int) []domain.Collection {
	var highScore, mediumScore []domain.TitledClip
	for _, c := range clips {
		switch {
		case c.FinalScore >= 0.8:
			highScore = append(highScore, c)
		case c.FinalScore >= 0.6:
			mediumScore = append(mediumScore, c)
		}
	}

	var out []domain.Collection
	if len(highScore) >= 2 {
		out = append(out, domain.Collection{
			ID:                "1",
			CollectionTitle:   "Top Picks",
			CollectionSummary: "The highest-scoring clips from this project.",
			ClipIDs:           clipIDsUpTo(highScore, maxPerCollection),
			CollectionType:    domain.CollectionAIRecommended,
		})
	}
	if len(mediumScore) >= 2 {
		out = append(out, domain.Collection{
			ID:                "2",
			CollectionTitle:   "Recommended",
			CollectionSummary: "Solid clips worth a look.",
			ClipIDs:           clipIDsUpTo(mediumScore, maxPerCollection),
			CollectionType:    domain.CollectionAIRecommended,
		})
	}
	return out
}

func clipIDsUpTo(clips []domain.TitledClip, max int) []string {
	if max > 0 && len(clips) > max {
		clips = clips[:max]
	}
	ids := make([]string, len(clips))
	for i, c := range clips {
		ids[i] = c.ID
	}
	return ids
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
