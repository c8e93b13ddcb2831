package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordSequence(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestChunk(t *testing.T) {
	t.Run("whitespace only returns nil", func(t *testing.T) {
		c := New(100, 10)
		assert.Nil(t, c.Chunk(""))
		assert.Nil(t, c.Chunk("   \n\t  "))
	})

	t.Run("short text returned unchanged", func(t *testing.T) {
		c := New(100, 10)
		text := "a handful of words,\nincluding original   spacing"
		chunks := c.Chunk(text)
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0])
	})

	t.Run("exactly chunk size is a single chunk", func(t *testing.T) {
		c := New(50, 10)
		chunks := c.Chunk(wordSequence(50))
		assert.Len(t, chunks, 1)
	})

	t.Run("5200 words at 3000/200 yields two chunks", func(t *testing.T) {
		c := New(3000, 200)
		chunks := c.Chunk(wordSequence(5200))
		require.Len(t, chunks, 2)

		first := strings.Fields(chunks[0])
		second := strings.Fields(chunks[1])
		require.Len(t, first, 3000)
		require.Len(t, second, 2400)
		assert.Equal(t, "w0", first[0])
		assert.Equal(t, "w2999", first[2999])
		assert.Equal(t, "w2800", second[0])
		assert.Equal(t, "w5199", second[2399])
	})

	t.Run("final partial window included", func(t *testing.T) {
		c := New(10, 2)
		chunks := c.Chunk(wordSequence(25))
		// Windows start at 0, 8, 16 and 24 is covered by the window at 16..25.
		require.Len(t, chunks, 3)
		assert.Len(t, strings.Fields(chunks[2]), 9)
	})

	t.Run("every word appears in at least one chunk", func(t *testing.T) {
		c := New(10, 3)
		n := 47
		chunks := c.Chunk(wordSequence(n))

		seen := map[string]bool{}
		for _, ch := range chunks {
			for _, w := range strings.Fields(ch) {
				seen[w] = true
			}
		}
		for i := 0; i < n; i++ {
			assert.True(t, seen[fmt.Sprintf("w%d", i)], "word w%d missing", i)
		}
	})

	t.Run("non-overlap spans reconstruct the word sequence", func(t *testing.T) {
		c := New(10, 3)
		n := 47
		chunks := c.Chunk(wordSequence(n))

		var rebuilt []string
		for i, ch := range chunks {
			words := strings.Fields(ch)
			if i > 0 {
				words = words[c.OverlapWords:]
			}
			rebuilt = append(rebuilt, words...)
		}
		assert.Equal(t, strings.Fields(wordSequence(n)), rebuilt)
	})

	t.Run("overlap equal to size still advances", func(t *testing.T) {
		c := New(5, 5)
		chunks := c.Chunk(wordSequence(12))
		assert.NotEmpty(t, chunks)
		last := strings.Fields(chunks[len(chunks)-1])
		assert.Equal(t, "w11", last[len(last)-1])
	})

	t.Run("non-positive size degrades to one-word windows", func(t *testing.T) {
		c := New(0, 0)
		chunks := c.Chunk("alpha beta gamma")
		assert.Equal(t, []string{"alpha", "beta", "gamma"}, chunks)

		c = New(-3, 1)
		chunks = c.Chunk("alpha beta")
		assert.Equal(t, []string{"alpha", "beta"}, chunks)
	})
}
