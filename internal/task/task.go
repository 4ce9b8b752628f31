// Package task defines the unit of work produced by intent decomposition
// and the dependency graph the scheduler executes.
package task

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yoonhw/jibsa/internal/listing"
)

// Capability is the closed set of task types, each bound to exactly one
// provider.
type Capability string

const (
	CapRetrieval      Capability = "retrieval"
	CapSimilarity     Capability = "similarity"
	CapAnalysis       Capability = "analysis"
	CapRecommendation Capability = "recommendation"
	CapComparison     Capability = "comparison"
	CapSavedList      Capability = "saved_list"
	CapConversational Capability = "conversational"
)

// Capabilities lists every capability in aggregation precedence order.
var Capabilities = []Capability{
	CapRetrieval,
	CapSimilarity,
	CapRecommendation,
	CapComparison,
	CapAnalysis,
	CapSavedList,
	CapConversational,
}

// Precedence returns the aggregation rank of the capability; lower sorts
// first. Unknown capabilities sort last.
func (c Capability) Precedence() int {
	for i, known := range Capabilities {
		if known == c {
			return i
		}
	}
	return len(Capabilities)
}

// Timeout returns the per-dispatch deadline for the capability.
func (c Capability) Timeout() time.Duration {
	switch c {
	case CapRetrieval:
		return 15 * time.Second
	case CapSimilarity:
		return 20 * time.Second
	case CapRecommendation, CapComparison:
		return 12 * time.Second
	case CapAnalysis:
		return 10 * time.Second
	case CapSavedList:
		return 5 * time.Second
	default:
		return 8 * time.Second
	}
}

// Label returns the human-readable section heading for the capability.
func (c Capability) Label() string {
	switch c {
	case CapRetrieval:
		return "매물 검색"
	case CapSimilarity:
		return "유사 매물"
	case CapRecommendation:
		return "추천"
	case CapComparison:
		return "비교"
	case CapAnalysis:
		return "분석"
	case CapSavedList:
		return "관심 목록"
	default:
		return "안내"
	}
}

// Status is the lifecycle state of a task. Terminal states are final.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Priority orders dispatch within a ready-set tie. It never overrides
// dependency order.
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
	PriorityLow    Priority = 3
)

// Result is the output of one completed task.
type Result struct {
	Text    string           `json:"text"`
	Records []listing.Record `json:"records,omitempty"`
}

// Task is one unit of work. Created by the decomposer, mutated only by the
// scheduler, immutable once terminal, owned by a single run.
type Task struct {
	ID          string         `json:"id"`
	Capability  Capability     `json:"capability"`
	Description string         `json:"description,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Priority    Priority       `json:"priority"`
	DependsOn   []string       `json:"depends_on,omitempty"`
	Status      Status         `json:"status"`
	Result      *Result        `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// New creates a pending task with a generated id.
func New(capability Capability, description string, payload map[string]any, priority Priority, deps ...string) *Task {
	return &Task{
		ID:          GenerateID(),
		Capability:  capability,
		Description: description,
		Payload:     payload,
		Priority:    priority,
		DependsOn:   deps,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}
}

// GenerateID creates a short unique task identifier.
func GenerateID() string {
	return "task_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
