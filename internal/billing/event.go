// AngelaMos | 2026
// event.go

package billing

import (
	"encoding/json"
	"fmt"
)

// EventKind is the closed set of provider events the reconciler acts on.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventCheckoutCompleted
	EventCheckoutExpired
	EventInvoicePaid
	EventInvoiceFailed
	EventSubscriptionDeleted
)

var eventKinds = map[string]EventKind{
	"checkout.session.completed":    EventCheckoutCompleted,
	"checkout.session.expired":      EventCheckoutExpired,
	"invoice.payment_succeeded":     EventInvoicePaid,
	"invoice.payment_failed":        EventInvoiceFailed,
	"customer.subscription.deleted": EventSubscriptionDeleted,
}

func KindOf(eventType string) EventKind {
	return eventKinds[eventType]
}

func (k EventKind) String() string {
	switch k {
	case EventCheckoutCompleted:
		return "checkout_completed"
	case EventCheckoutExpired:
		return "checkout_expired"
	case EventInvoicePaid:
		return "invoice_paid"
	case EventInvoiceFailed:
		return "invoice_failed"
	case EventSubscriptionDeleted:
		return "subscription_deleted"
	default:
		return "unknown"
	}
}

// Event is a verified provider notification. Object holds the raw
// data.object payload.
type Event struct {
	ID     string
	Type   string
	Kind   EventKind
	Object json.RawMessage
}

const PaymentStatusPaid = "paid"

type CheckoutSessionObject struct {
	ID              string            `json:"id"`
	PaymentStatus   string            `json:"payment_status"`
	Customer        string            `json:"customer"`
	CustomerDetails *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

// InvoiceObject covers both the legacy top-level subscription field and
// the parent.subscription_details shape of newer API versions.
type InvoiceObject struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (i *InvoiceObject) SubscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return i.Parent.SubscriptionDetails.Subscription
	}
	return ""
}

type SubscriptionObject struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
}

func (e *Event) CheckoutSession() (*CheckoutSessionObject, error) {
	var obj CheckoutSessionObject
	if err := json.Unmarshal(e.Object, &obj); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return &obj, nil
}

func (e *Event) Invoice() (*InvoiceObject, error) {
	var obj InvoiceObject
	if err := json.Unmarshal(e.Object, &obj); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	return &obj, nil
}

func (e *Event) Subscription() (*SubscriptionObject, error) {
	var obj SubscriptionObject
	if err := json.Unmarshal(e.Object, &obj); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	return &obj, nil
}
