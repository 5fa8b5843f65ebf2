package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorIncludesInternal(t *testing.T) {
	err := Wrap(stdErrors.New("boom"), "failed")

	require.Equal(t, "failed: boom", err.Error())
	require.Equal(t, ErrInternal.Code, err.Code)
}

func TestCopiesLeaveCatalogUntouched(t *testing.T) {
	with := ErrStoreQuery.WithInternal(stdErrors.New("oops")).WithMessage("query %s failed", "kp")

	require.Nil(t, ErrStoreQuery.Internal)
	require.Equal(t, "Data store query failed", ErrStoreQuery.Message)
	require.Equal(t, "query kp failed", with.Message)
	require.NotNil(t, with.Internal)
}

func TestIsMatchesByCode(t *testing.T) {
	copied := ErrTableNotFound.WithMessage("table %q not found", "dst_index")
	wrapped := fmt.Errorf("read: %w", copied)

	require.ErrorIs(t, wrapped, ErrTableNotFound)
	require.NotErrorIs(t, wrapped, ErrRouteNotFound)
}

func TestFromError(t *testing.T) {
	require.Same(t, ErrTableNotFound, FromError(ErrTableNotFound))
	require.Nil(t, FromError(nil))

	raw := stdErrors.New("raw")
	out := FromError(raw)
	require.Equal(t, ErrInternal.Code, out.Code)
	require.ErrorIs(t, out, raw)
}

func TestInvalid(t *testing.T) {
	err := Invalid("limit must be >= 0")

	require.Equal(t, "request.invalid", err.Code)
	require.Equal(t, "limit must be >= 0", err.Message)
	require.Equal(t, http.StatusBadRequest, err.StatusCode)
}

func TestStoreErrorsStatusCodes(t *testing.T) {
	wrapped := ErrStoreUnavailable.WithInternal(stdErrors.New("store: no connection configured"))

	require.Equal(t, http.StatusServiceUnavailable, FromError(wrapped).StatusCode)
	require.Equal(t, http.StatusGatewayTimeout, ErrStoreTimeout.StatusCode)
	require.Equal(t, http.StatusBadGateway, ErrStoreQuery.StatusCode)
}
