package order

import (
	"context"
	"fmt"
	"sort"

	"github.com/MarcGrol/invoicebackend/lib/myerrors"
	"github.com/MarcGrol/invoicebackend/lib/mylog"
	"github.com/MarcGrol/invoicebackend/services/order/orderevents"
)

func (s *service) createOrder(c context.Context, cmd CreateOrderCommand) (Order, error) {
	err := cmd.Validate()
	if err != nil {
		return Order{}, myerrors.NewInvalidInputError(err)
	}

	orderUID := s.uuider.Create()
	order := Order{
		UID:        orderUID,
		Status:     OrderStatusCreated,
		Price:      cmd.Price,
		Quantity:   cmd.Quantity,
		ProductID:  cmd.ProductID,
		CustomerID: cmd.CustomerID,
		SellerID:   cmd.SellerID,
		CreatedAt:  s.nower.Now(),
	}

	s.logger.Log(c, orderUID, mylog.SeverityInfo, "Creating new order with uid %s", orderUID)

	err = s.orderStore.RunInTransaction(c, func(c context.Context) error {
		err := s.orderStore.Put(c, orderUID, order)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		err = s.publisher.Publish(c, orderevents.TopicOrderCreated, orderevents.OrderCreated{
			OrderID:    orderUID,
			CustomerID: order.CustomerID,
			SellerID:   order.SellerID,
		})
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return Order{}, err
	}

	return order, nil
}

func (s *service) listOrders(c context.Context) ([]Order, error) {
	s.logger.Log(c, "", mylog.SeverityInfo, "Fetch all orders")

	orders, err := s.orderStore.List(c)
	if err != nil {
		return nil, myerrors.NewInternalError(err)
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	return orders, nil
}

func (s *service) getOrder(c context.Context, orderUID string) (Order, error) {
	s.logger.Log(c, orderUID, mylog.SeverityInfo, "Fetch details of order with uid %s", orderUID)

	order, found, err := s.orderStore.Get(c, orderUID)
	if err != nil {
		return Order{}, myerrors.NewInternalError(err)
	}
	if !found {
		return Order{}, myerrors.NewNotFoundError(fmt.Errorf("order with uid %s not found", orderUID))
	}

	return order, nil
}

func (s *service) updateOrder(c context.Context, orderUID string, cmd UpdateOrderCommand) (Order, error) {
	err := cmd.Validate()
	if err != nil {
		return Order{}, myerrors.NewInvalidInputError(err)
	}

	s.logger.Log(c, orderUID, mylog.SeverityInfo, "Updating order with uid %s", orderUID)

	now := s.nower.Now()

	var order Order
	err = s.orderStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		order, found, err = s.orderStore.Get(c, orderUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("order with uid %s not found", orderUID))
		}

		cmd.applyTo(&order)
		order.LastModified = &now

		// whichever transaction first sees the order shipped with an
		// invoice attached claims the emission
		emitInvoiceSend := order.readyForInvoiceSend()

		err = s.orderStore.Put(c, orderUID, order)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		if emitInvoiceSend {
			err = s.publisher.Publish(c, orderevents.TopicInvoiceSend, orderevents.InvoiceSendRequested{
				InvoiceID: order.InvoiceID,
				OrderID:   order.UID,
			})
			if err != nil {
				return myerrors.NewInternalError(err)
			}
		}

		return nil
	})
	if err != nil {
		return Order{}, err
	}

	return order, nil
}
