package invoice

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/invoicebackend/lib/mycontext"
	"github.com/MarcGrol/invoicebackend/lib/myerrors"
	"github.com/MarcGrol/invoicebackend/lib/myevents"
	"github.com/MarcGrol/invoicebackend/lib/myhttp"
	"github.com/MarcGrol/invoicebackend/services/order/orderevents"
)

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/api/invoice", s.uploadInvoicePage()).Methods("POST")
	router.HandleFunc("/api/invoice/order/{orderUID}", s.getInvoiceByOrderPage()).Methods("GET")
	router.HandleFunc("/api/invoice/{uid}", s.getInvoicePage()).Methods("GET")
	router.HandleFunc("/api/invoice/{uid}/pdf", s.getInvoiceDocumentPage()).Methods("GET")

	// Async notifications delivered by the event bus
	router.HandleFunc("/api/invoice/event", s.handleEventEnvelope()).Methods("POST")

	err := s.service.Subscribe(c)
	if err != nil {
		return err
	}

	return nil
}

func (s *webService) uploadInvoicePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		cmd, err := parseUploadRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}

		invoice, err := s.service.uploadInvoice(c, cmd)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusCreated, invoice)
	}
}

func (s *webService) getInvoicePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		invoiceUID := mux.Vars(r)["uid"]

		invoice, err := s.service.getInvoice(c, invoiceUID)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, invoice)
	}
}

func (s *webService) getInvoiceByOrderPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		orderUID := mux.Vars(r)["orderUID"]

		invoice, err := s.service.getInvoiceByOrder(c, orderUID)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, invoice)
	}
}

func (s *webService) getInvoiceDocumentPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		invoiceUID := mux.Vars(r)["uid"]

		content, err := s.service.getInvoiceDocument(c, invoiceUID)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
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

		err = orderevents.DispatchEnvelope(c, envelope, s.service)
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

func parseUploadRequest(r *http.Request) (UploadInvoiceCommand, error) {
	err := r.ParseMultipartForm(maxUploadSize)
	if err != nil {
		return UploadInvoiceCommand{}, fmt.Errorf("error parsing multipart form: %s", err)
	}

	file, header, err := r.FormFile("invoice")
	if err != nil {
		return UploadInvoiceCommand{}, fmt.Errorf("missing file field 'invoice': %s", err)
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		return UploadInvoiceCommand{}, fmt.Errorf("error reading file: %s", err)
	}

	return UploadInvoiceCommand{
		OrderID:  r.FormValue("orderId"),
		SellerID: r.FormValue("sellerId"),
		Filename: header.Filename,
		Content:  content,
	}, nil
}
