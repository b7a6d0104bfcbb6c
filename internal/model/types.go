// Package model defines the entities persisted and passed between
// components of the crawl/enrichment pipeline.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Land is a research project: a named collection of domains,
// expressions, and a lemma dictionary used to score relevance.
type Land struct {
	ID                  uuid.UUID
	Name                string
	Description         string
	Lang                string
	Keywords            []string
	DepthLimit          int
	DictionaryUpdatedAt time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Domain groups expressions under a single host. Title/Description/
// HTTPStatus are populated by a domain-crawl job against the domain's
// root URL, independently of any single Expression's own metadata.
type Domain struct {
	ID          uuid.UUID
	LandID      uuid.UUID
	Name        string
	Title       string
	Description string
	HTTPStatus  *int
	CreatedAt   time.Time
}

// ExtractStrategy records which cascade tier produced an Expression's
// readable content.
type ExtractStrategy string

const (
	StrategyPrimary   ExtractStrategy = "primary"
	StrategyArchive   ExtractStrategy = "archive"
	StrategyHeuristic ExtractStrategy = "heuristic"
	StrategyMinimal   ExtractStrategy = "minimal"
)

// rank orders strategies from weakest to strongest signal, used by
// the readable-refresh smart_merge decision.
func (s ExtractStrategy) rank() int {
	switch s {
	case StrategyMinimal:
		return 0
	case StrategyHeuristic:
		return 1
	case StrategyArchive:
		return 2
	case StrategyPrimary:
		return 3
	default:
		return -1
	}
}

// Outranks reports whether s is a stronger signal than other.
func (s ExtractStrategy) Outranks(other ExtractStrategy) bool {
	return s.rank() > other.rank()
}

// Expression is a single crawled URL within a Land.
type Expression struct {
	ID                  uuid.UUID
	LandID              uuid.UUID
	DomainID            uuid.UUID
	URL                 string
	Depth               int
	HTTPStatus          *int
	Title               string
	Description         string
	ReadableText        string
	ExtractedBy         ExtractStrategy
	Lang                string
	Relevance           float64
	Quality             float64
	Sentiment           float64
	SentimentConfidence float64
	MediaProcessed      bool
	ValidLLM            *bool
	ApprovedAt          *time.Time
	FetchedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsCandidate reports whether the expression is eligible for
// crawl/enrichment processing: not yet approved, and within depth.
func (e Expression) IsCandidate(depthLimit int) bool {
	return e.ApprovedAt == nil && e.Depth <= depthLimit
}

// ExpressionLink is a directed edge in the link graph between two
// expressions within the same Land.
type ExpressionLink struct {
	ID       uuid.UUID
	LandID   uuid.UUID
	SourceID uuid.UUID
	TargetID uuid.UUID
	Anchor   string
	CreatedAt time.Time
}

// Media is an image discovered on an Expression.
type Media struct {
	ID           uuid.UUID
	ExpressionID uuid.UUID
	URL          string
	Width        int
	Height       int
	DominantRGB  [3]uint8
	PerceptualHash uint64
	CreatedAt    time.Time
}

// Word is a single dictionary entry (lemma) belonging to a Land.
type Word struct {
	ID     uuid.UUID
	LandID uuid.UUID
	Term   string
	Lemma  string
}

// Paragraph is a stable, ordered text segment of an Expression,
// produced for downstream embedding/consumption.
type Paragraph struct {
	ID           uuid.UUID
	ExpressionID uuid.UUID
	Ordinal      int
	Text         string
}

// JobKind identifies which pipeline a Job runs.
type JobKind string

const (
	JobCrawl       JobKind = "crawl"
	JobReadable    JobKind = "readable"
	JobMedia       JobKind = "media"
	JobLLM         JobKind = "llm"
	JobConsolidate JobKind = "consolidate"
	JobSEORank     JobKind = "seorank"
	JobDomainCrawl JobKind = "domain_crawl"
	JobHeuristic   JobKind = "heuristic"
)

// JobStatus is the job's position in the pending -> running ->
// {succeeded, failed, cancelled} state machine. Values must match the
// text stored in the jobs table.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job is a unit of scheduled work against a Land. Progress is 0..100
// and is updated throughout the run by whichever executor handles
// Kind, not just set once at the end.
type Job struct {
	ID              uuid.UUID
	LandID          uuid.UUID
	Kind            JobKind
	Status          JobStatus
	Params          map[string]any
	Counters        map[string]any
	Progress        int
	CancelRequested bool
	Error           string
	CreatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}
