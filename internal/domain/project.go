// Package domain holds the data model shared across the pipeline:
// projects, cues, chunks, outlines, timeline items, clips and collections.
package domain

import "time"

// Category is one of the closed set of content categories a project can
// be tagged with. Unrecognized values are rejected at the boundary by
// internal/config.
type Category string

const (
	CategoryEducation     Category = "education"
	CategoryEntertainment Category = "entertainment"
	CategoryFinance       Category = "finance"
	CategoryLifestyle     Category = "lifestyle"
	CategoryTech          Category = "tech"
	CategoryGaming        Category = "gaming"
	CategorySports        Category = "sports"
	CategoryNews          Category = "news"
)

// AllCategories is the closed set in a stable order, used for validation
// and for listing in the HTTP surface.
var AllCategories = []Category{
	CategoryEducation, CategoryEntertainment, CategoryFinance,
	CategoryLifestyle, CategoryTech, CategoryGaming, CategorySports,
	CategoryNews,
}

func (c Category) Valid() bool {
	for _, v := range AllCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Status is a project's lifecycle state.
type Status string

const (
	StatusCreated    Status = "created"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Project is the top-level unit of work: one (video, subtitle) pair
// flowing through the six-stage pipeline.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Category     Category  `json:"category"`
	VideoPath    string    `json:"video_path"`
	CurrentStage int       `json:"current_stage"` // 0..6
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Cue is one immutable subtitle entry.
type Cue struct {
	Index int     `json:"index"`
	Start float64 `json:"start_seconds"`
	End   float64 `json:"end_seconds"`
	Text  string  `json:"text"`
}

// Chunk is a contiguous slice of cues, the unit of work handed to the LLM
// gateway at each chunked stage.
type Chunk struct {
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
	Cues       []Cue   `json:"srt_entries"`
}

// Outline is a candidate topic extracted from one chunk in stage 1.
type Outline struct {
	Title      string   `json:"title"`
	Subtopics  []string `json:"subtopics"`
	ChunkIndex int      `json:"chunk_index"`
}

// TimelineItem anchors an Outline to a concrete time window within its
// chunk. ID is assigned once, globally, at the end of stage 2 and is
// durable for the rest of the pipeline.
type TimelineItem struct {
	ID         string `json:"id,omitempty"`
	Outline    string `json:"outline"`
	Content    string `json:"content"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	ChunkIndex int    `json:"chunk_index"`
}

// ScoredClip is a TimelineItem with a recommendation score attached.
type ScoredClip struct {
	TimelineItem
	FinalScore      float64 `json:"final_score"`
	RecommendReason string  `json:"recommend_reason"`
}

// TitledClip is a ScoredClip with a generated title, falling back to the
// outline text when title generation fails for its chunk.
type TitledClip struct {
	ScoredClip
	GeneratedTitle string `json:"generated_title"`
}

// CollectionType distinguishes AI-clustered collections from
// hand-assembled ones (the latter isn't produced by this pipeline today,
// but the field is part of the durable artifact shape).
type CollectionType string

const (
	CollectionAIRecommended CollectionType = "ai_recommended"
	CollectionManual        CollectionType = "manual"
)

const MaxClipsPerCollection = 5

// Collection groups 2..MaxClipsPerCollection clips under a theme; the
// order of ClipIDs is the concat order for the rendered collection video.
type Collection struct {
	ID                string         `json:"id"`
	CollectionTitle   string         `json:"collection_title"`
	CollectionSummary string         `json:"collection_summary"`
	ClipIDs           []string       `json:"clip_ids"`
	CollectionType    CollectionType `json:"collection_type"`
	CreatedAt         time.Time      `json:"created_at"`
}
