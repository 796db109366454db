// Package types contains the domain types shared across the indexing and
// retrieval engine: code chunks, change sets, run reports, retrieval
// snippets, and the error taxonomy used to classify remote failures.
package types
