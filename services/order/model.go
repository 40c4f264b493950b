package order

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusCreated  OrderStatus = "CREATED"
	OrderStatusAccepted OrderStatus = "ACCEPTED"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusShipping OrderStatus = "SHIPPING"
	OrderStatusShipped  OrderStatus = "SHIPPED"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusAccepted, OrderStatusRejected, OrderStatusShipping, OrderStatusShipped:
		return true
	}
	return false
}

type Order struct {
	UID        string      `json:"uid"`
	Status     OrderStatus `json:"status"`
	Price      float64     `json:"price"`
	Quantity   int         `json:"quantity"`
	ProductID  string      `json:"productId"`
	CustomerID string      `json:"customerId"`
	SellerID   string      `json:"sellerId"`
	InvoiceID  string      `json:"invoiceId,omitempty"`

	// InvoiceSendEmitted is the serialization point between the shipped and
	// invoice-uploaded triggers: whichever transaction flips it publishes
	// the send-request, so it goes out exactly once per order
	InvoiceSendEmitted bool `json:"-"`

	CreatedAt    time.Time  `json:"createdAt"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// readyForInvoiceSend reports whether this mutation is the one that newly
// satisfies the joint predicate, and claims the emission when it is.
func (o *Order) readyForInvoiceSend() bool {
	if o.Status == OrderStatusShipped && o.InvoiceID != "" && !o.InvoiceSendEmitted {
		o.InvoiceSendEmitted = true
		return true
	}
	return false
}

type CreateOrderCommand struct {
	Price      float64 `json:"price" form:"price"`
	Quantity   int     `json:"quantity" form:"quantity"`
	ProductID  string  `json:"productId" form:"productId"`
	CustomerID string  `json:"customerId" form:"customerId"`
	SellerID   string  `json:"sellerId" form:"sellerId"`
}

func (cmd CreateOrderCommand) Validate() error {
	if cmd.Price <= 0 {
		return fmt.Errorf("price must be positive, got %v", cmd.Price)
	}
	if cmd.Quantity <= 0 {
		return fmt.Errorf("quantity must be a positive integer, got %d", cmd.Quantity)
	}
	if cmd.ProductID == "" {
		return fmt.Errorf("missing productId")
	}
	if cmd.CustomerID == "" {
		return fmt.Errorf("missing customerId")
	}
	if cmd.SellerID == "" {
		return fmt.Errorf("missing sellerId")
	}
	return nil
}

// UpdateOrderCommand is a partial patch: only non-nil fields are applied
type UpdateOrderCommand struct {
	Status     *OrderStatus `json:"status,omitempty"`
	Price      *float64     `json:"price,omitempty"`
	Quantity   *int         `json:"quantity,omitempty"`
	ProductID  *string      `json:"productId,omitempty"`
	CustomerID *string      `json:"customerId,omitempty"`
	SellerID   *string      `json:"sellerId,omitempty"`
}

func (cmd UpdateOrderCommand) Validate() error {
	if cmd.Status != nil && !cmd.Status.IsValid() {
		return fmt.Errorf("unknown status %s", *cmd.Status)
	}
	if cmd.Price != nil && *cmd.Price <= 0 {
		return fmt.Errorf("price must be positive, got %v", *cmd.Price)
	}
	if cmd.Quantity != nil && *cmd.Quantity <= 0 {
		return fmt.Errorf("quantity must be a positive integer, got %d", *cmd.Quantity)
	}
	if cmd.ProductID != nil && *cmd.ProductID == "" {
		return fmt.Errorf("productId must not be empty")
	}
	if cmd.CustomerID != nil && *cmd.CustomerID == "" {
		return fmt.Errorf("customerId must not be empty")
	}
	if cmd.SellerID != nil && *cmd.SellerID == "" {
		return fmt.Errorf("sellerId must not be empty")
	}
	return nil
}

func (cmd UpdateOrderCommand) applyTo(order *Order) {
	if cmd.Status != nil {
		order.Status = *cmd.Status
	}
	if cmd.Price != nil {
		order.Price = *cmd.Price
	}
	if cmd.Quantity != nil {
		order.Quantity = *cmd.Quantity
	}
	if cmd.ProductID != nil {
		order.ProductID = *cmd.ProductID
	}
	if cmd.CustomerID != nil {
		order.CustomerID = *cmd.CustomerID
	}
	if cmd.SellerID != nil {
		order.SellerID = *cmd.SellerID
	}
}
