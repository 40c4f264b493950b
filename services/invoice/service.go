package invoice

import (
	"github.com/MarcGrol/invoicebackend/lib/myfilestore"
	"github.com/MarcGrol/invoicebackend/lib/myinbox"
	"github.com/MarcGrol/invoicebackend/lib/mylog"
	"github.com/MarcGrol/invoicebackend/lib/mypublisher"
	"github.com/MarcGrol/invoicebackend/lib/mypubsub"
	"github.com/MarcGrol/invoicebackend/lib/mystore"
	"github.com/MarcGrol/invoicebackend/lib/mytime"
	"github.com/MarcGrol/invoicebackend/lib/myuuid"
)

const consumerGroup = "invoice-service"

type service struct {
	invoiceStore mystore.Store[Invoice]
	byOrderStore mystore.Store[InvoiceRef]
	fileStore    myfilestore.FileStore
	publisher    mypublisher.Publisher
	pubsub       mypubsub.PubSub
	nower        mytime.Nower
	uuider       myuuid.UUIDer
	logger       mylog.Logger
}

type webService struct {
	logger  mylog.Logger
	service *service
	inbox   myinbox.Inbox
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewService(invoiceStore mystore.Store[Invoice], byOrderStore mystore.Store[InvoiceRef], fileStore myfilestore.FileStore,
	nower mytime.Nower, uuider myuuid.UUIDer, subscriber mypubsub.PubSub, publisher mypublisher.Publisher, inbox myinbox.Inbox) *webService {
	logger := mylog.New("invoice")

	return &webService{
		logger: logger,
		service: &service{
			invoiceStore: invoiceStore,
			byOrderStore: byOrderStore,
			fileStore:    fileStore,
			publisher:    publisher,
			pubsub:       subscriber,
			nower:        nower,
			uuider:       uuider,
			logger:       logger,
		},
		inbox: inbox,
	}
}
