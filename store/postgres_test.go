package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonotonic(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, base.Add(time.Second), monotonic(base.Add(time.Second), base))
	assert.Equal(t, base, monotonic(base, base))
	assert.Equal(t, base, monotonic(base.Add(-time.Minute), base))
}

func TestOldestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	// Conversation 按 seq 倒序查询
	rows := []directMessage{
		{Seq: 3, ID: uuid.New(), FromUserID: "bob", ToUserID: "alice", Body: "three", CreatedAt: base.Add(2 * time.Second)},
		{Seq: 2, ID: uuid.New(), FromUserID: "alice", ToUserID: "bob", Body: "  two ", CreatedAt: base.Add(time.Second)},
		{Seq: 1, ID: uuid.New(), FromUserID: "alice", ToUserID: "bob", Body: "one", CreatedAt: base},
	}

	result := oldestFirst(rows)

	require.Len(t, result, 3)
	assert.Equal(t, []string{"one", "  two ", "three"}, []string{result[0].Message, result[1].Message, result[2].Message})
	assert.Equal(t, rows[2].ID, result[0].ID)
	assert.Equal(t, "bob", result[2].FromUserID)
	assert.Equal(t, time.UTC, result[0].Timestamp.Location())
	assert.True(t, result[0].Timestamp.Equal(base))
	assert.Empty(t, oldestFirst(nil))
}

func TestDirectMessage_tableName(t *testing.T) {
	assert.Equal(t, "direct_messages", directMessage{}.TableName())
}
