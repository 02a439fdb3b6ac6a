// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package record defines the collected engineering record types and the
// structured filter expression used to query them.
//
// Six kinds of records flow through the system: teams, repositories, pull
// requests, issues, commits, and workflow runs. Each kind has a natural
// identity (Key) so upserts replace instead of duplicating, and a Field
// accessor so filters and distinct-value scans work without reflection.
//
// All timestamps are UTC. Optional timestamps are pointers; a nil pointer
// or zero Time means "missing". Derived duration fields on workflow runs
// are recomputed from their timestamps on every write and never trusted
// from input.
package record

import (
	"fmt"
)

// =============================================================================
// Kinds
// =============================================================================

// Kind identifies one of the record families held in the store.
type Kind string

const (
	KindTeam        Kind = "team"
	KindRepository  Kind = "repository"
	KindPullRequest Kind = "pull_request"
	KindIssue       Kind = "issue"
	KindCommit      Kind = "commit"
	KindWorkflowRun Kind = "workflow_run"
)

// Kinds returns every kind in generation order: rosters first, then the
// activity records that reference them.
func Kinds() []Kind {
	return []Kind{
		KindTeam,
		KindRepository,
		KindIssue,
		KindPullRequest,
		KindCommit,
		KindWorkflowRun,
	}
}

// Valid reports whether k names a known record kind.
func (k Kind) Valid() bool {
	switch k {
	case KindTeam, KindRepository, KindPullRequest, KindIssue, KindCommit, KindWorkflowRun:
		return true
	}
	return false
}

// New returns an empty record of the given kind, ready to decode into.
func New(kind Kind) (Record, error) {
	switch kind {
	case KindTeam:
		return &Team{}, nil
	case KindRepository:
		return &Repository{}, nil
	case KindPullRequest:
		return &PullRequest{}, nil
	case KindIssue:
		return &Issue{}, nil
	case KindCommit:
		return &Commit{}, nil
	case KindWorkflowRun:
		return &WorkflowRun{}, nil
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
}

// =============================================================================
// Record contract
// =============================================================================

// Record is the contract every stored type satisfies.
//
// Description:
//
//	Key returns the natural identity rendered as a store key suffix;
//	two records of the same kind with equal keys are the same record.
//	Field exposes values by their wire name so filters and distinct
//	scans stay reflection-free.
type Record interface {
	// RecordKind names the family this record belongs to.
	RecordKind() Kind

	// Key renders the natural identity as a stable, unique key suffix.
	Key() string

	// Field returns the value of the named field and whether the name
	// is known. Optional fields return their pointer (possibly nil).
	Field(name string) (any, bool)
}

// Normalizer is implemented by records that repair derived fields before
// a write: recomputed durations, implied state transitions.
type Normalizer interface {
	Normalize()
}

// formatIntKey zero-pads numeric identities so store iteration order
// matches numeric order.
func formatIntKey(id int64) string {
	return fmt.Sprintf("%012d", id)
}

// =============================================================================
// Team
// =============================================================================

// Team is a roster: an ordered member list under a team name. Members may
// appear on more than one team; attribution resolves the overlap.
type Team struct {
	TeamID      int64    `json:"team_id"`
	Name        string   `json:"name"`
	Members     []string `json:"members"`
	Description string   `json:"description,omitempty"`
	CreatedAt   Time     `json:"created_at"`
	UpdatedAt   Time     `json:"updated_at"`
}

func (t *Team) RecordKind() Kind { return KindTeam }

func (t *Team) Key() string { return formatIntKey(t.TeamID) }

func (t *Team) Field(name string) (any, bool) {
	switch name {
	case "team_id":
		return t.TeamID, true
	case "name":
		return t.Name, true
	case "members":
		return t.Members, true
	case "description":
		return t.Description, true
	case "created_at":
		return t.CreatedAt, true
	case "updated_at":
		return t.UpdatedAt, true
	}
	return nil, false
}

// =============================================================================
// Repository
// =============================================================================

// Repository is a source repository known to the system.
type Repository struct {
	RepoID      int64  `json:"repo_id"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	Description string `json:"description,omitempty"`
	CreatedAt   Time   `json:"created_at"`
	UpdatedAt   Time   `json:"updated_at"`
}

func (r *Repository) RecordKind() Kind { return KindRepository }

func (r *Repository) Key() string { return formatIntKey(r.RepoID) }

func (r *Repository) Field(name string) (any, bool) {
	switch name {
	case "repo_id":
		return r.RepoID, true
	case "name":
		return r.Name, true
	case "owner":
		return r.Owner, true
	case "description":
		return r.Description, true
	case "created_at":
		return r.CreatedAt, true
	case "updated_at":
		return r.UpdatedAt, true
	}
	return nil, false
}

// =============================================================================
// PullRequest
// =============================================================================

// Pull request states. A merged PR is always closed.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// PullRequest is a change proposal with its review and size statistics.
type PullRequest struct {
	PRID         int64  `json:"pr_id"`
	Repo         string `json:"repo"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	CreatedAt    Time   `json:"created_at"`
	ClosedAt     *Time  `json:"closed_at,omitempty"`
	MergedAt     *Time  `json:"merged_at,omitempty"`
	State        string `json:"state"`
	ReviewCount  int    `json:"review_count"`
	CommentCount int    `json:"comment_count"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	ChangedFiles int    `json:"changed_files"`
}

func (p *PullRequest) RecordKind() Kind { return KindPullRequest }

func (p *PullRequest) Key() string { return formatIntKey(p.PRID) }

// Normalize enforces merged ⇒ closed and defaults the state for records
// that arrive without one.
func (p *PullRequest) Normalize() {
	if p.MergedAt != nil && !p.MergedAt.IsZero() {
		p.State = StateClosed
		if p.ClosedAt == nil || p.ClosedAt.IsZero() {
			p.ClosedAt = p.MergedAt
		}
	}
	if p.State == "" {
		p.State = StateOpen
	}
}

// Merged reports whether this PR was merged.
func (p *PullRequest) Merged() bool {
	return p.MergedAt != nil && !p.MergedAt.IsZero()
}

// TotalLines is additions plus deletions, the size used for bucketing.
func (p *PullRequest) TotalLines() int {
	return p.Additions + p.Deletions
}

func (p *PullRequest) Field(name string) (any, bool) {
	switch name {
	case "pr_id":
		return p.PRID, true
	case "repo":
		return p.Repo, true
	case "title":
		return p.Title, true
	case "author":
		return p.Author, true
	case "created_at":
		return p.CreatedAt, true
	case "closed_at":
		return p.ClosedAt, true
	case "merged_at":
		return p.MergedAt, true
	case "state":
		return p.State, true
	case "review_count":
		return p.ReviewCount, true
	case "comment_count":
		return p.CommentCount, true
	case "additions":
		return p.Additions, true
	case "deletions":
		return p.Deletions, true
	case "changed_files":
		return p.ChangedFiles, true
	}
	return nil, false
}

// =============================================================================
// Issue
// =============================================================================

// Issue is a tracker work item keyed by its human-readable issue key
// ("FE-1042"), the identity the original tracker exposes.
type Issue struct {
	IssueKey     string   `json:"issue_key"`
	IssueID      int64    `json:"issue_id"`
	ProjectKey   string   `json:"project_key"`
	Repo         string   `json:"repo"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	IssueType    string   `json:"issue_type"`
	Author       string   `json:"author"`
	Assignee     string   `json:"assignee,omitempty"`
	CreatedAt    Time     `json:"created_at"`
	UpdatedAt    Time     `json:"updated_at"`
	ClosedAt     *Time    `json:"closed_at,omitempty"`
	DueDate      *Time    `json:"due_date,omitempty"`
	Status       string   `json:"status"`
	Resolution   string   `json:"resolution,omitempty"`
	Priority     string   `json:"priority"`
	CommentCount int      `json:"comment_count"`
	Labels       []string `json:"labels,omitempty"`
	Components   []string `json:"components,omitempty"`
	Sprint       string   `json:"sprint,omitempty"`
	StoryPoints  float64  `json:"story_points,omitempty"`
	EpicLink     string   `json:"epic_link,omitempty"`
}

func (i *Issue) RecordKind() Kind { return KindIssue }

func (i *Issue) Key() string { return i.IssueKey }

func (i *Issue) Field(name string) (any, bool) {
	switch name {
	case "issue_key":
		return i.IssueKey, true
	case "issue_id":
		return i.IssueID, true
	case "project_key":
		return i.ProjectKey, true
	case "repo":
		return i.Repo, true
	case "title":
		return i.Title, true
	case "description":
		return i.Description, true
	case "issue_type":
		return i.IssueType, true
	case "author":
		return i.Author, true
	case "assignee":
		return i.Assignee, true
	case "created_at":
		return i.CreatedAt, true
	case "updated_at":
		return i.UpdatedAt, true
	case "closed_at":
		return i.ClosedAt, true
	case "due_date":
		return i.DueDate, true
	case "status":
		return i.Status, true
	case "resolution":
		return i.Resolution, true
	case "priority":
		return i.Priority, true
	case "comment_count":
		return i.CommentCount, true
	case "labels":
		return i.Labels, true
	case "components":
		return i.Components, true
	case "sprint":
		return i.Sprint, true
	case "story_points":
		return i.StoryPoints, true
	case "epic_link":
		return i.EpicLink, true
	}
	return nil, false
}

// =============================================================================
// Commit
// =============================================================================

// Commit is a single commit with its churn statistics. PRID links it to a
// pull request; zero means unlinked.
type Commit struct {
	SHA          string `json:"sha"`
	Repo         string `json:"repo"`
	Author       string `json:"author"`
	Message      string `json:"message"`
	Date         Time   `json:"date"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	FilesChanged int    `json:"files_changed"`
	PRID         int64  `json:"pr_id,omitempty"`
}

func (c *Commit) RecordKind() Kind { return KindCommit }

func (c *Commit) Key() string { return c.SHA }

func (c *Commit) Field(name string) (any, bool) {
	switch name {
	case "sha":
		return c.SHA, true
	case "repo":
		return c.Repo, true
	case "author":
		return c.Author, true
	case "message":
		return c.Message, true
	case "date":
		return c.Date, true
	case "additions":
		return c.Additions, true
	case "deletions":
		return c.Deletions, true
	case "files_changed":
		return c.FilesChanged, true
	case "pr_id":
		return c.PRID, true
	}
	return nil, false
}

// =============================================================================
// WorkflowRun
// =============================================================================

// Workflow run conclusions.
const (
	ConclusionSuccess   = "success"
	ConclusionFailure   = "failure"
	ConclusionCancelled = "cancelled"
	ConclusionTimedOut  = "timed_out"
)

// Runner types.
const (
	RunnerGitHubHosted = "github-hosted"
	RunnerSelfHosted   = "self-hosted"
)

// WorkflowRun is one CI workflow execution. PickupSeconds and
// ExecutionSeconds are derived from the three timestamps; Normalize owns
// them and input values are discarded.
type WorkflowRun struct {
	RunID            int64    `json:"run_id"`
	Repo             string   `json:"repo"`
	WorkflowName     string   `json:"workflow_name"`
	CreatedAt        Time     `json:"created_at"`
	StartedAt        *Time    `json:"started_at,omitempty"`
	CompletedAt      *Time    `json:"completed_at,omitempty"`
	Conclusion       string   `json:"conclusion"`
	RunnerName       string   `json:"runner_name"`
	RunnerType       string   `json:"runner_type"`
	PickupSeconds    *float64 `json:"pickup_time_seconds,omitempty"`
	ExecutionSeconds *float64 `json:"execution_time_seconds,omitempty"`
	Branch           string   `json:"branch"`
}

func (w *WorkflowRun) RecordKind() Kind { return KindWorkflowRun }

func (w *WorkflowRun) Key() string { return formatIntKey(w.RunID) }

// Normalize recomputes the derived durations from timestamps. A missing
// timestamp on either side leaves the duration nil.
func (w *WorkflowRun) Normalize() {
	w.PickupSeconds = nil
	w.ExecutionSeconds = nil
	if w.StartedAt != nil && !w.StartedAt.IsZero() && !w.CreatedAt.IsZero() {
		v := w.StartedAt.Sub(w.CreatedAt.Time).Seconds()
		w.PickupSeconds = &v
	}
	if w.CompletedAt != nil && !w.CompletedAt.IsZero() &&
		w.StartedAt != nil && !w.StartedAt.IsZero() {
		v := w.CompletedAt.Sub(w.StartedAt.Time).Seconds()
		w.ExecutionSeconds = &v
	}
}

func (w *WorkflowRun) Field(name string) (any, bool) {
	switch name {
	case "run_id":
		return w.RunID, true
	case "repo":
		return w.Repo, true
	case "workflow_name":
		return w.WorkflowName, true
	case "created_at":
		return w.CreatedAt, true
	case "started_at":
		return w.StartedAt, true
	case "completed_at":
		return w.CompletedAt, true
	case "conclusion":
		return w.Conclusion, true
	case "runner_name":
		return w.RunnerName, true
	case "runner_type":
		return w.RunnerType, true
	case "pickup_time_seconds":
		return w.PickupSeconds, true
	case "execution_time_seconds":
		return w.ExecutionSeconds, true
	case "branch":
		return w.Branch, true
	}
	return nil, false
}
