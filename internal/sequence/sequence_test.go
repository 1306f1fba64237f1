package sequence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderNumber(t *testing.T) {
	require.Equal(t, "PO-000001", OrderNumber(1))
	require.Equal(t, "PO-000042", OrderNumber(42))
	require.Equal(t, "PO-999999", OrderNumber(999999))
	// values past six digits widen instead of truncating
	require.Equal(t, "PO-1000000", OrderNumber(1000000))
}
