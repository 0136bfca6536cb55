package apperrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
)

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := apperrors.New(apperrors.KindDBQuery, "query failed", true, cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, err.IsRetryable())
	assert.Equal(t, apperrors.KindDBQuery, apperrors.KindOf(err))
}

func TestNotFoundf(t *testing.T) {
	err := apperrors.NotFoundf("schema", "orders")

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
	assert.Contains(t, err.Error(), "orders")
}

func TestIsKind_UnstructuredError(t *testing.T) {
	assert.False(t, apperrors.IsKind(errors.New("plain"), apperrors.KindNotFound))
}
