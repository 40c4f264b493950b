package order

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/gorilla/mux"

	"github.com/MarcGrol/invoicebackend/lib/mycontext"
	"github.com/MarcGrol/invoicebackend/lib/myerrors"
	"github.com/MarcGrol/invoicebackend/lib/myevents"
	"github.com/MarcGrol/invoicebackend/lib/myhttp"
	"github.com/MarcGrol/invoicebackend/services/invoice/invoiceevents"
)

var formDecoder = form.NewDecoder()

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/api/order", s.createOrderPage()).Methods("POST")
	router.HandleFunc("/api/order", s.listOrdersPage()).Methods("GET")
	router.HandleFunc("/api/order/{uid}", s.getOrderPage()).Methods("GET")
	router.HandleFunc("/api/order/{uid}", s.updateOrderPage()).Methods("PUT")

	// Async notifications delivered by the event bus
	router.HandleFunc("/api/order/event", s.handleEventEnvelope()).Methods("POST")

	err := s.service.Subscribe(c)
	if err != nil {
		return err
	}

	return nil
}

func (s *webService) createOrderPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		cmd, err := parseCreateOrderRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}

		order, err := s.service.createOrder(c, cmd)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusCreated, order)
	}
}

func (s *webService) listOrdersPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		orders, err := s.service.listOrders(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, orders)
	}
}

func (s *webService) getOrderPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		orderUID := mux.Vars(r)["uid"]

		order, err := s.service.getOrder(c, orderUID)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, order)
	}
}

func (s *webService) updateOrderPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		orderUID := mux.Vars(r)["uid"]

		cmd := UpdateOrderCommand{}
		err := json.NewDecoder(r.Body).Decode(&cmd)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}

		order, err := s.service.updateOrder(c, orderUID, cmd)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, order)
	}
}

func (s *webService) handleEventEnvelope() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		envelope, err := myevents.ParseEventEnvelope(r.Body)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(err))
			return
		}

		// the bus is at-least-once, so acknowledge redeliveries without
		// re-executing the handler
		alreadyProcessed, err := s.inbox.AlreadyProcessed(c, consumerGroup, envelope.EventID)
		if err != nil {
			errorWriter.WriteError(c, w, 2, myerrors.NewInternalError(err))
			return
		}
		if alreadyProcessed {
			errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
				Message: "Duplicate event ignored",
			})
			return
		}

		err = invoiceevents.DispatchEnvelope(c, envelope, s.service)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		err = s.inbox.MarkProcessed(c, consumerGroup, envelope.EventID)
		if err != nil {
			errorWriter.WriteError(c, w, 4, myerrors.NewInternalError(err))
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "Successfully processed event",
		})
	}
}

func parseCreateOrderRequest(r *http.Request) (CreateOrderCommand, error) {
	cmd := CreateOrderCommand{}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		err := json.NewDecoder(r.Body).Decode(&cmd)
		if err != nil {
			return CreateOrderCommand{}, err
		}
		return cmd, nil
	}

	err := r.ParseForm()
	if err != nil {
		return CreateOrderCommand{}, err
	}
	err = formDecoder.Decode(&cmd, r.Form)
	if err != nil {
		return CreateOrderCommand{}, err
	}

	return cmd, nil
}
