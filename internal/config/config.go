// Package config resolves processing tunables, category-scoped prompt
// files, and the pre-cluster keyword table (C9).
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/clipforge/pipeline/internal/domain"
	"github.com/clipforge/pipeline/internal/platform/envutil"
)

// Processing holds the tunables spec §4.9 names. Defaults match the
// original implementation's constants; a JSON settings file under
// data/settings.json may override any of them on top of env defaults.
type Processing struct {
	ChunkIntervalSeconds   float64 `json:"chunk_interval_seconds"`
	PauseThresholdMs       float64 `json:"pause_threshold_ms"`
	MinScoreThreshold      float64 `json:"min_score_threshold"`
	MaxClipsPerCollection  int     `json:"max_clips_per_collection"`
	MinTopicDurationMin    float64 `json:"min_topic_duration_minutes"`
	MaxTopicDurationMin    float64 `json:"max_topic_duration_minutes"`
	TargetTopicDurationMin float64 `json:"target_topic_duration_minutes"`
	MinTopicsPerChunk      int     `json:"min_topics_per_chunk"`
	MaxTopicsPerChunk      int     `json:"max_topics_per_chunk"`
	LLMMaxRetries          int     `json:"llm_max_retries"`
	LLMTimeoutSeconds      int     `json:"llm_timeout_seconds"`
	ProviderName           string  `json:"provider_name"`
	ModelName              string  `json:"model_name"`
	MaxConcurrentRuns      int     `json:"max_concurrent_processing"`
}

func DefaultProcessing() Processing {
	return Processing{
		ChunkIntervalSeconds:   30 * 60,
		PauseThresholdMs:       1000,
		MinScoreThreshold:      0.7,
		MaxClipsPerCollection:  domain.MaxClipsPerCollection,
		MinTopicDurationMin:    1,
		MaxTopicDurationMin:    10,
		TargetTopicDurationMin: 3,
		MinTopicsPerChunk:      1,
		MaxTopicsPerChunk:      10,
		LLMMaxRetries:          3,
		LLMTimeoutSeconds:      30,
		ProviderName:           envutil.String("LLM_PROVIDER", "native"),
		ModelName:              envutil.String("LLM_MODEL", "default-model"),
		MaxConcurrentRuns:      envutil.Int("MAX_CONCURRENT_PROCESSING", 1),
	}
}

// LoadProcessing builds the effective Processing config: defaults,
// overridden field-by-field by data/settings.json if present, mirroring
// the original ConfigManager._load_settings merge behavior.
func LoadProcessing(dataDir string) (Processing, error) {
	p := DefaultProcessing()
	settingsPath := filepath.Join(dataDir, "settings.json")
	raw, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, err
	}
	var overrides map[string]json.RawMessage
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return p, err
	}
	merged, err := json.Marshal(p)
	if err != nil {
		return p, err
	}
	var asMap map[string]json.RawMessage
	if err := json.Unmarshal(merged, &asMap); err != nil {
		return p, err
	}
	for k, v := range overrides {
		asMap[k] = v
	}
	remerged, err := json.Marshal(asMap)
	if err != nil {
		return p, err
	}
	var out Processing
	if err := json.Unmarshal(remerged, &out); err != nil {
		return p, err
	}
	return out, nil
}

// PromptRole is one of the five prompt roles the pipeline consumes.
type PromptRole string

const (
	PromptOutline        PromptRole = "outline"
	PromptTimeline        PromptRole = "timeline"
	PromptRecommendation PromptRole = "recommendation"
	PromptTitle          PromptRole = "title"
	PromptClustering     PromptRole = "clustering"
)

var promptFileNames = map[PromptRole]string{
	PromptOutline:        "outline.txt",
	PromptTimeline:       "timeline.txt",
	PromptRecommendation: "recommendation.txt",
	PromptTitle:          "title.txt",
	PromptClustering:     "clustering.txt",
}

// Prompts resolves prompt file content per role, honoring a
// category-specific override with fallback to the shared default,
// file-by-file.
type Prompts struct {
	PromptDir string
}

func (p Prompts) Resolve(role PromptRole, category domain.Category) (string, error) {
	name, ok := promptFileNames[role]
	if !ok {
		return "", &InvalidPromptRole{Role: string(role)}
	}
	if category != "" {
		categoryPath := filepath.Join(p.PromptDir, string(category), name)
		if data, err := os.ReadFile(categoryPath); err == nil {
			return string(data), nil
		}
	}
	defaultPath := filepath.Join(p.PromptDir, name)
	data, err := os.ReadFile(defaultPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type InvalidPromptRole struct {
	Role string
}

func (e *InvalidPromptRole) Error() string {
	return "unknown prompt role: " + e.Role
}
