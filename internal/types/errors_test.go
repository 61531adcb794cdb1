package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoomErrorFormat(t *testing.T) {
	plain := NewError(HANDLER_NOT_FOUND, "no handler named echo")
	assert.Equal(t, "[HANDLER_NOT_FOUND] no handler named echo", plain.Error())

	wrapped := WrapError(STORAGE_QUERY_FAILED, "failed to query documents", errors.New("disk gone"))
	assert.Equal(t, "[STORAGE_QUERY_FAILED] failed to query documents: disk gone", wrapped.Error())
}

func TestLoomErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := WrapError(STORAGE_INSERT_FAILED, "insert failed", cause)

	assert.ErrorIs(t, err, cause)

	var loomErr *LoomError
	require.True(t, errors.As(fmt.Errorf("outer: %w", err), &loomErr))
	assert.Equal(t, STORAGE_INSERT_FAILED, loomErr.Code)
}

func TestIsCode(t *testing.T) {
	err := NewError(TASK_ALREADY_CLAIMED, "already running")

	assert.True(t, IsCode(err, TASK_ALREADY_CLAIMED))
	assert.False(t, IsCode(err, TASK_NOT_FOUND))
	assert.True(t, IsCode(fmt.Errorf("wrapped: %w", err), TASK_ALREADY_CLAIMED))
	assert.False(t, IsCode(errors.New("plain"), TASK_ALREADY_CLAIMED))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRetryableError(STORAGE_QUERY_FAILED, "timeout")))
	assert.False(t, IsRetryable(NewError(STORAGE_QUERY_FAILED, "corrupt")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
