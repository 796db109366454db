package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_DefinitionBoundaries(t *testing.T) {
	content := `import os

LIMIT = 500

def check_limit(amount):
    return amount <= LIMIT

class RuleSet:
    def apply(self, txn):
        if not check_limit(txn.amount):
            return "rejected"
        return "approved"
`

	e := New()
	chunks, fallback := e.Extract("rules.py", content)

	assert.False(t, fallback)
	require.Len(t, chunks, 3)

	assert.Contains(t, chunks[0].Content, "import os")
	assert.Contains(t, chunks[0].Content, "LIMIT = 500")
	assert.True(t, strings.HasPrefix(chunks[1].Content, "def check_limit"))
	assert.True(t, strings.HasPrefix(chunks[2].Content, "class RuleSet"))
	// Methods stay inside their class chunk.
	assert.Contains(t, chunks[2].Content, "def apply")
}

func TestExtract_Deterministic(t *testing.T) {
	content := "def a():\n    pass\n\ndef b():\n    pass\n"

	e := New()
	first, _ := e.Extract("a.py", content)
	second, _ := e.Extract("a.py", content)

	assert.Equal(t, first, second)
}

func TestExtract_FallbackWindows(t *testing.T) {
	// No def/class anywhere: a data-only module.
	var sb strings.Builder
	for i := 0; i < 250; i++ {
		fmt.Fprintf(&sb, "VALUE_%d = %d\n", i, i)
	}

	e := New()
	chunks, fallback := e.Extract("data.py", sb.String())

	assert.True(t, fallback)
	require.Greater(t, len(chunks), 1)

	// Consecutive windows overlap.
	assert.Less(t, chunks[1].StartLine, chunks[0].EndLine)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.EndLine-c.StartLine+1, WindowLines)
	}
}

func TestExtract_OversizedDefinitionSplit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("def huge():\n")
	for i := 0; i < MaxChunkLines*2; i++ {
		fmt.Fprintf(&sb, "    x_%d = %d\n", i, i)
	}

	e := New()
	chunks, fallback := e.Extract("huge.py", sb.String())

	assert.False(t, fallback)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.EndLine-c.StartLine+1, MaxChunkLines)
	}
	// Chunks are contiguous and ordered.
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndLine+1, chunks[i].StartLine)
	}
}

func TestExtract_SmallTailMerged(t *testing.T) {
	content := "def first():\n    " + strings.Repeat("x = 1\n    ", 30) + "\n\ndef t():\n    pass\n"

	e := New()
	chunks, _ := e.Extract("tail.py", content)

	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	// The tiny trailing def was folded into the previous chunk.
	assert.Contains(t, last.Content, "def t()")
	assert.Contains(t, last.Content, "def first()")
}

func TestExtract_EmptyContent(t *testing.T) {
	e := New()

	chunks, fallback := e.Extract("empty.py", "")
	assert.Empty(t, chunks)
	assert.False(t, fallback)

	chunks, _ = e.Extract("blank.py", "   \n\n  \n")
	assert.Empty(t, chunks)
}

func TestExtract_IndentedDefsNotSplit(t *testing.T) {
	content := `class Outer:
    def method_one(self):
        pass

    def method_two(self):
        pass
`

	e := New()
	chunks, fallback := e.Extract("cls.py", content)

	assert.False(t, fallback)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "method_one")
	assert.Contains(t, chunks[0].Content, "method_two")
}
