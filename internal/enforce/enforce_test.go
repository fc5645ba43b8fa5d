package enforce

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforce_LengthLimit(t *testing.T) {
	require.NoError(t, Enforce(strings.Repeat("a", MaxLength)))

	err := Enforce(strings.Repeat("a", MaxLength+1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E006")
	assert.Contains(t, err.Error(), "65537")
	assert.Contains(t, err.Error(), "65536")
}

func TestEnforce_MentionLimit(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < MaxMentions; i++ {
		fmt.Fprintf(&sb, "@user%d ", i)
	}
	require.NoError(t, Enforce(sb.String()))

	sb.WriteString("@onemore")
	err := Enforce(sb.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E007")
	assert.Contains(t, err.Error(), "11")
	assert.Contains(t, err.Error(), "10")
}

func TestEnforce_LinkLimit(t *testing.T) {
	var sb strings.Builder
	// Mix both schemes; they count together.
	for i := 0; i < 25; i++ {
		sb.WriteString("http://a.example ")
		sb.WriteString("https://b.example ")
	}
	require.NoError(t, Enforce(sb.String()))

	sb.WriteString("https://c.example")
	err := Enforce(sb.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E008")
	assert.Contains(t, err.Error(), "51")
	assert.Contains(t, err.Error(), "50")
}

func TestEnforce_NoiseDoesNotCountAsMention(t *testing.T) {
	// Bare @ and digit-only tails are not mentions.
	assert.NoError(t, Enforce(strings.Repeat("@ @123 @456 ", 20)))
}

func TestCountLinks_CaseInsensitive(t *testing.T) {
	assert.Equal(t, 3, CountLinks("HTTP://a HTTPS://b https://c"))
}
