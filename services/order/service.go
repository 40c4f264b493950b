package order

import (
	"github.com/MarcGrol/invoicebackend/lib/myinbox"
	"github.com/MarcGrol/invoicebackend/lib/mylog"
	"github.com/MarcGrol/invoicebackend/lib/mypublisher"
	"github.com/MarcGrol/invoicebackend/lib/mypubsub"
	"github.com/MarcGrol/invoicebackend/lib/mystore"
	"github.com/MarcGrol/invoicebackend/lib/mytime"
	"github.com/MarcGrol/invoicebackend/lib/myuuid"
)

const consumerGroup = "order-service"

type service struct {
	orderStore mystore.Store[Order]
	publisher  mypublisher.Publisher
	pubsub     mypubsub.PubSub
	nower      mytime.Nower
	uuider     myuuid.UUIDer
	logger     mylog.Logger
}

type webService struct {
	logger  mylog.Logger
	service *service
	inbox   myinbox.Inbox
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewService(store mystore.Store[Order], nower mytime.Nower, uuider myuuid.UUIDer, subscriber mypubsub.PubSub, publisher mypublisher.Publisher, inbox myinbox.Inbox) *webService {
	logger := mylog.New("order")

	return &webService{
		logger: logger,
		service: &service{
			orderStore: store,
			publisher:  publisher,
			pubsub:     subscriber,
			nower:      nower,
			uuider:     uuider,
			logger:     logger,
		},
		inbox: inbox,
	}
}
