package retriever

import (
	"strings"
	"unicode/utf8"

	"github.com/draylor/repolens/internal/gitremote"
	"github.com/draylor/repolens/internal/storage"
	"github.com/draylor/repolens/pkg/types"
)

// maxSnippetBytes caps a single snippet handed to the consumer.
const maxSnippetBytes = 2000

// mergeSnippets combines vector matches and lexical hits into one ranked
// list, deduplicated by path. Vector results come first in similarity order;
// a path both sources returned is marked merged and keeps the vector chunk
// content, which carries the full extracted body rather than the raw file.
// Remaining lexical hits follow in the order the search service ranked them.
func mergeSnippets(vecMatches []storage.SimilarityMatch, lexHits []gitremote.SearchHit, maxResults int) []types.Snippet {
	lexByPath := make(map[string]gitremote.SearchHit, len(lexHits))
	for _, hit := range lexHits {
		if _, dup := lexByPath[hit.Path]; !dup {
			lexByPath[hit.Path] = hit
		}
	}

	snippets := make([]types.Snippet, 0, maxResults)
	seen := make(map[string]struct{})

	for _, m := range vecMatches {
		if len(snippets) == maxResults {
			break
		}
		if _, dup := seen[m.Chunk.Path]; dup {
			continue
		}
		seen[m.Chunk.Path] = struct{}{}

		source := types.SourceVector
		if _, both := lexByPath[m.Chunk.Path]; both {
			source = types.SourceMerged
		}
		snippets = append(snippets, types.Snippet{
			Path:    m.Chunk.Path,
			Content: truncateSnippet(m.Chunk.Content),
			Source:  source,
			Score:   m.Score,
		})
	}

	for _, hit := range lexHits {
		if len(snippets) == maxResults {
			break
		}
		if _, dup := seen[hit.Path]; dup {
			continue
		}
		seen[hit.Path] = struct{}{}
		snippets = append(snippets, types.Snippet{
			Path:    hit.Path,
			Content: truncateSnippet(hit.Content),
			Source:  types.SourceLexical,
			Score:   hit.Score,
		})
	}

	return snippets
}

// truncateSnippet bounds content to maxSnippetBytes without splitting a
// UTF-8 sequence.
func truncateSnippet(content string) string {
	if len(content) <= maxSnippetBytes {
		return content
	}
	cut := maxSnippetBytes
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return strings.TrimRight(content[:cut], "\n") + "\n..."
}
