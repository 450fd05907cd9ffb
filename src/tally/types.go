package tally

import "time"

// Organization identifies a DAO tracked by the Tally API.
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Proposal is a snapshot of one governance proposal as returned by the API.
// Status is an opaque token controlled upstream (active, passed, defeated,
// executed, ...); it is compared for equality, never interpreted.
type Proposal struct {
	ID     uint64
	Status string
	Title  string
	Start  time.Time
	End    time.Time
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type timestampNode struct {
	Timestamp string `json:"timestamp"`
}

type proposalNode struct {
	ID       string        `json:"id"`
	Status   string        `json:"status"`
	Start    timestampNode `json:"start"`
	End      timestampNode `json:"end"`
	Metadata struct {
		Title string `json:"title"`
	} `json:"metadata"`
}

type pageInfo struct {
	LastCursor string `json:"lastCursor"`
	Count      int    `json:"count"`
}
