package config

import "github.com/clipforge/pipeline/internal/domain"

// PreclusterTheme is one keyword-hinted theme bucket used as a fallback
// when the LLM clustering stage (S5) produces fewer than 3 validated
// collections. Mechanism ported from the original's
// `_pre_cluster_by_keywords` / `_create_collections_from_pre_clusters`;
// each theme carries a tag from the closed category set in place of the
// source's Chinese-language theme labels.
type PreclusterTheme struct {
	Category domain.Category
	Title    string
	Summary  string
	Keywords []string
}

// Preclusters is the default keyword table, one bucket per theme. Two
// themes share the lifestyle category and no theme is tagged gaming, so
// callers key buckets by table index, not by category.
var Preclusters = []PreclusterTheme{
	{
		Category: domain.CategoryFinance,
		Title:    "Money Moves",
		Summary:  "Practical investing and money-management takeaways drawn from real examples.",
		Keywords: []string{"invest", "stock", "fund", "budget", "income", "savings", "market", "portfolio"},
	},
	{
		Category: domain.CategoryEducation,
		Title:    "Career Growth",
		Summary:  "Skill-building, career pivots, and workplace lessons.",
		Keywords: []string{"career", "job", "skill", "study", "degree", "promotion", "interview"},
	},
	{
		Category: domain.CategoryNews,
		Title:    "Social Observations",
		Summary:  "Commentary on social trends, platforms, and online behavior.",
		Keywords: []string{"society", "trend", "platform", "policy", "community", "controversy"},
	},
	{
		Category: domain.CategoryLifestyle,
		Title:    "Culture Notes",
		Summary:  "Cross-cultural observations on food, language, and everyday life.",
		Keywords: []string{"culture", "food", "language", "travel", "tradition", "custom"},
	},
	{
		Category: domain.CategoryEntertainment,
		Title:    "Live & Interactive",
		Summary:  "Highlights from live, audience-facing moments.",
		Keywords: []string{"live", "stream", "chat", "fans", "audience", "interaction"},
	},
	{
		Category: domain.CategoryLifestyle,
		Title:    "Relationships",
		Summary:  "Dating, relationships, and social dynamics.",
		Keywords: []string{"relationship", "dating", "love", "friendship", "social"},
	},
	{
		Category: domain.CategorySports,
		Title:    "Health & Fitness",
		Summary:  "Exercise, diet, and wellness habits.",
		Keywords: []string{"health", "fitness", "workout", "diet", "wellness", "exercise"},
	},
	{
		Category: domain.CategoryTech,
		Title:    "Creator Economy",
		Summary:  "Content creation, platforms, and creator-economy mechanics.",
		Keywords: []string{"creator", "content", "platform", "algorithm", "monetize", "audience"},
	},
}

const minPreclusterSize = 2
