package purchasing

import "github.com/shopspring/decimal"

// Recompute derives every calculated field on the order from its
// underlying data: item totals, subtotal, grand total and payment
// status. Callers mutate items, tax, discount or the payment ledger and
// then recompute; derived fields are never written directly.
func Recompute(po *PurchaseOrder) {
	subtotal := decimal.Zero
	for i := range po.Items {
		item := &po.Items[i]
		item.Total = item.UnitPrice.Mul(decimal.NewFromFloat(item.Quantity))
		subtotal = subtotal.Add(item.Total)
	}
	po.Subtotal = subtotal
	po.Total = subtotal.Add(po.Tax).Sub(po.Discount)
	po.PaymentStatus = derivePaymentStatus(po.PaidTotal(), po.Total)
}

func derivePaymentStatus(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case paid.IsZero() || paid.IsNegative():
		return PaymentUnpaid
	case paid.GreaterThanOrEqual(total):
		return PaymentPaid
	default:
		return PaymentPartiallyPaid
	}
}
