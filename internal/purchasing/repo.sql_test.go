package purchasing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderClauseWhitelist(t *testing.T) {
	tests := []struct {
		name    string
		filters ListFilters
		want    string
	}{
		{"default", ListFilters{}, " ORDER BY po.id DESC"},
		{"due date ascending", ListFilters{SortBy: "dueDate", SortDir: "asc"}, " ORDER BY po.due_date ASC"},
		{"total descending", ListFilters{SortBy: "total", SortDir: "desc"}, " ORDER BY po.total DESC"},
		{"case-insensitive direction", ListFilters{SortBy: "orderNumber", SortDir: "ASC"}, " ORDER BY po.order_number ASC"},
		{"unknown column falls back", ListFilters{SortBy: "vendor_id; DROP TABLE purchase_orders", SortDir: "asc"}, " ORDER BY po.id ASC"},
		{"unknown direction falls back", ListFilters{SortBy: "createdAt", SortDir: "sideways"}, " ORDER BY po.created_at DESC"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, orderClause(tc.filters))
		})
	}
}
