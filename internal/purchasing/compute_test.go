package purchasing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRecomputeTotals(t *testing.T) {
	po := PurchaseOrder{
		Items: []LineItem{
			{Description: "widgets", Quantity: 10, UnitPrice: dec("5.00")},
			{Description: "shipping crate", Quantity: 2, UnitPrice: dec("12.50")},
		},
		Tax:      dec("7.50"),
		Discount: dec("2.50"),
	}
	Recompute(&po)

	require.True(t, po.Items[0].Total.Equal(dec("50.00")))
	require.True(t, po.Items[1].Total.Equal(dec("25.00")))
	require.True(t, po.Subtotal.Equal(dec("75.00")))
	require.True(t, po.Total.Equal(dec("80.00")))
	require.Equal(t, PaymentUnpaid, po.PaymentStatus)
}

func TestRecomputeFractionalQuantity(t *testing.T) {
	po := PurchaseOrder{
		Items: []LineItem{{Description: "cable", Quantity: 2.5, UnitPrice: dec("4.00")}},
	}
	Recompute(&po)
	require.True(t, po.Subtotal.Equal(dec("10.00")))
	require.True(t, po.Total.Equal(dec("10.00")))
}

func TestRecomputeDiscountExceedsSubtotal(t *testing.T) {
	po := PurchaseOrder{
		Items:    []LineItem{{Description: "sample", Quantity: 1, UnitPrice: dec("5.00")}},
		Discount: dec("10.00"),
	}
	Recompute(&po)
	require.True(t, po.Total.Equal(dec("-5.00")))
}

func TestDerivePaymentStatus(t *testing.T) {
	cases := []struct {
		name  string
		paid  string
		total string
		want  PaymentStatus
	}{
		{"nothing paid", "0", "100", PaymentUnpaid},
		{"partial", "40", "100", PaymentPartiallyPaid},
		{"exact", "100", "100", PaymentPaid},
		{"over", "120", "100", PaymentPaid},
		{"zero total", "0", "0", PaymentUnpaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, derivePaymentStatus(dec(tc.paid), dec(tc.total)))
		})
	}
}

func TestRecomputePaymentStatusFromLedger(t *testing.T) {
	po := PurchaseOrder{
		Items:    []LineItem{{Description: "paper", Quantity: 10, UnitPrice: dec("5.00")}},
		Payments: []Payment{{Amount: dec("20.00")}, {Amount: dec("30.00")}},
	}
	Recompute(&po)
	require.True(t, po.Total.Equal(dec("50.00")))
	require.Equal(t, PaymentPaid, po.PaymentStatus)
	require.True(t, po.RemainingBalance().Equal(dec("0")))
}
