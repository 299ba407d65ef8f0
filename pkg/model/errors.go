package model

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrDanglingReference means a relation referenced an entity that does
	// not exist in the knowledge graph. Fatal to the ingesting call only;
	// prior graph state is untouched.
	ErrDanglingReference = goerr.New("relation references unknown entity")

	// ErrDimensionMismatch means a vector's dimensionality differs from the
	// index's fixed dimensionality. Index misconfiguration, surfaced to the
	// operator.
	ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

	// ErrDependencyUnavailable means an external collaborator (embedding,
	// extraction, summarization) failed after the caller's retry budget.
	// Wrap with goerr.V("collaborator", name).
	ErrDependencyUnavailable = goerr.New("external dependency unavailable")

	ErrArticleNotFound = goerr.New("article not found")
	ErrFeedNotFound    = goerr.New("feed not found")
	ErrInvalidAction   = goerr.New("invalid reading action")
)
