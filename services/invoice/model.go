package invoice

import (
	"bytes"
	"fmt"
	"time"
)

const maxUploadSize = 10 << 20

var pdfMagic = []byte("%PDF")

type Invoice struct {
	UID        string     `json:"uid"`
	OrderID    string     `json:"orderId"`
	SellerID   string     `json:"sellerId"`
	PDFPath    string     `json:"pdfPath"`
	UploadedAt time.Time  `json:"uploadedAt"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
}

// InvoiceRef is the unique secondary lookup from orderId to invoice uid
type InvoiceRef struct {
	OrderID    string
	InvoiceUID string
}

type UploadInvoiceCommand struct {
	OrderID  string
	SellerID string
	Filename string
	Content  []byte
}

func (cmd UploadInvoiceCommand) Validate() error {
	if cmd.OrderID == "" {
		return fmt.Errorf("missing orderId")
	}
	if cmd.SellerID == "" {
		return fmt.Errorf("missing sellerId")
	}
	if len(cmd.Content) == 0 {
		return fmt.Errorf("empty file")
	}
	if len(cmd.Content) > maxUploadSize {
		return fmt.Errorf("file exceeds %d bytes", maxUploadSize)
	}
	if !bytes.HasPrefix(cmd.Content, pdfMagic) {
		return fmt.Errorf("file is not a pdf")
	}
	return nil
}
