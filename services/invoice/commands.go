package invoice

import (
	"context"
	"fmt"

	"github.com/MarcGrol/invoicebackend/lib/myerrors"
	"github.com/MarcGrol/invoicebackend/lib/mylog"
	"github.com/MarcGrol/invoicebackend/services/invoice/invoiceevents"
)

func (s *service) uploadInvoice(c context.Context, cmd UploadInvoiceCommand) (Invoice, error) {
	err := cmd.Validate()
	if err != nil {
		return Invoice{}, myerrors.NewInvalidInputError(err)
	}

	invoiceUID := s.uuider.Create()
	now := s.nower.Now()

	s.logger.Log(c, cmd.OrderID, mylog.SeverityInfo, "Uploading invoice %s for order %s", invoiceUID, cmd.OrderID)

	// The document is written first: a dangling file is harmless, an invoice
	// record without its document is not
	pdfPath, err := s.fileStore.Save(c,
		fmt.Sprintf("%s/%s", cmd.SellerID, cmd.OrderID),
		fmt.Sprintf("%d-%s", now.UnixMilli(), cmd.Filename),
		cmd.Content)
	if err != nil {
		return Invoice{}, myerrors.NewInternalError(fmt.Errorf("error storing document: %s", err))
	}

	invoice := Invoice{
		UID:        invoiceUID,
		OrderID:    cmd.OrderID,
		SellerID:   cmd.SellerID,
		PDFPath:    pdfPath,
		UploadedAt: now,
	}

	err = s.invoiceStore.RunInTransaction(c, func(c context.Context) error {
		_, found, err := s.byOrderStore.Get(c, cmd.OrderID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if found {
			return myerrors.NewInvalidInputError(fmt.Errorf("order %s already has an invoice", cmd.OrderID))
		}

		err = s.invoiceStore.Put(c, invoiceUID, invoice)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		err = s.byOrderStore.Put(c, cmd.OrderID, InvoiceRef{
			OrderID:    cmd.OrderID,
			InvoiceUID: invoiceUID,
		})
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		err = s.publisher.Publish(c, invoiceevents.TopicInvoiceUploaded, invoiceevents.InvoiceUploaded{
			InvoiceID: invoiceUID,
			OrderID:   cmd.OrderID,
		})
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	return invoice, nil
}

func (s *service) getInvoice(c context.Context, invoiceUID string) (Invoice, error) {
	s.logger.Log(c, invoiceUID, mylog.SeverityInfo, "Fetch details of invoice with uid %s", invoiceUID)

	invoice, found, err := s.invoiceStore.Get(c, invoiceUID)
	if err != nil {
		return Invoice{}, myerrors.NewInternalError(err)
	}
	if !found {
		return Invoice{}, myerrors.NewNotFoundError(fmt.Errorf("invoice with uid %s not found", invoiceUID))
	}

	return invoice, nil
}

func (s *service) getInvoiceByOrder(c context.Context, orderUID string) (Invoice, error) {
	s.logger.Log(c, orderUID, mylog.SeverityInfo, "Fetch invoice of order %s", orderUID)

	ref, found, err := s.byOrderStore.Get(c, orderUID)
	if err != nil {
		return Invoice{}, myerrors.NewInternalError(err)
	}
	if !found {
		return Invoice{}, myerrors.NewNotFoundError(fmt.Errorf("order %s has no invoice", orderUID))
	}

	return s.getInvoice(c, ref.InvoiceUID)
}

func (s *service) getInvoiceDocument(c context.Context, invoiceUID string) ([]byte, error) {
	invoice, err := s.getInvoice(c, invoiceUID)
	if err != nil {
		return nil, err
	}

	content, err := s.fileStore.Load(c, invoice.PDFPath)
	if err != nil {
		return nil, myerrors.NewInternalError(fmt.Errorf("error reading document of invoice %s: %s", invoiceUID, err))
	}

	return content, nil
}
