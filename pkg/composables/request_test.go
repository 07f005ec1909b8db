package composables

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUseLogger_FallsBackToNop(t *testing.T) {
	t.Parallel()

	entry := UseLogger(context.Background())
	require.NotNil(t, entry)
	assert.Equal(t, logrus.PanicLevel, entry.Logger.GetLevel())

	custom := logrus.NewEntry(logrus.New()).WithField("component", "test")
	assert.Same(t, custom, UseLogger(WithLogger(context.Background(), custom)))
}

func TestUseIdentity(t *testing.T) {
	t.Parallel()

	_, err := UseIdentity(context.Background())
	require.ErrorIs(t, err, ErrNoIdentity)

	ctx := WithIdentity(context.Background(), Identity{UserID: 7, CompanyID: 3})
	identity, err := UseIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), identity.UserID)
	assert.Equal(t, int64(3), identity.CompanyID)
}

func TestUseRequestID(t *testing.T) {
	t.Parallel()

	_, ok := UseRequestID(context.Background())
	assert.False(t, ok)

	id, ok := UseRequestID(WithRequestID(context.Background(), "req-1"))
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestUseLoggerOr(t *testing.T) {
	t.Parallel()

	fallback := logrus.NewEntry(logrus.New())
	assert.Same(t, fallback, UseLoggerOr(context.Background(), fallback))

	custom := logrus.NewEntry(logrus.New())
	assert.Same(t, custom, UseLoggerOr(WithLogger(context.Background(), custom), fallback))
}
