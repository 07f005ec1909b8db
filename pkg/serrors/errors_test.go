package serrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase_IsMatchesByCode(t *testing.T) {
	t.Parallel()

	errA := NewError("SAMPLE_CODE", "sample", "")
	wrapped := fmt.Errorf("context: %w", errA)

	require.ErrorIs(t, wrapped, errA)
	assert.ErrorIs(t, wrapped, NewError("SAMPLE_CODE", "other message", ""))
	assert.NotErrorIs(t, wrapped, NewError("OTHER_CODE", "sample", ""))
	assert.Equal(t, "SAMPLE_CODE", Code(wrapped))
	assert.Empty(t, Code(fmt.Errorf("plain")))
}
