package payment

import "context"

type Gateway interface {
	CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error)
}
