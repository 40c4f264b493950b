package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/invoicebackend/lib/myfilestore"
	"github.com/MarcGrol/invoicebackend/lib/myinbox"
	"github.com/MarcGrol/invoicebackend/lib/mypublisher"
	"github.com/MarcGrol/invoicebackend/lib/mypubsub"
	"github.com/MarcGrol/invoicebackend/lib/myqueue"
	"github.com/MarcGrol/invoicebackend/lib/mystore"
	"github.com/MarcGrol/invoicebackend/lib/mytime"
	"github.com/MarcGrol/invoicebackend/lib/myuuid"
	"github.com/MarcGrol/invoicebackend/services/gateway"
	"github.com/MarcGrol/invoicebackend/services/invoice"
	"github.com/MarcGrol/invoicebackend/services/order"
)

func main() {
	c := context.Background()

	router, cleanup, err := compose(c)
	if err != nil {
		log.Fatalf("Error composing services: %s", err)
	}
	defer cleanup()

	startWebServerBlocking(router)
}

func compose(c context.Context) (*mux.Router, func(), error) {
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}

	// an unreachable broker aborts startup
	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to event bus: %s", err)
	}
	cleanups = append(cleanups, pubsubCleanup)

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error connecting to task queue: %s", err)
	}
	cleanups = append(cleanups, queueCleanup)

	inbox, inboxCleanup, err := myinbox.New(c)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error connecting to inbox: %s", err)
	}
	cleanups = append(cleanups, inboxCleanup)

	fileStore, fileStoreCleanup, err := myfilestore.New(c)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error creating file-store: %s", err)
	}
	cleanups = append(cleanups, fileStoreCleanup)

	orderStore, orderStoreCleanup, err := mystore.New[order.Order](c)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error creating order-store: %s", err)
	}
	cleanups = append(cleanups, orderStoreCleanup)

	invoiceStore, invoiceStoreCleanup, err := mystore.New[invoice.Invoice](c)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error creating invoice-store: %s", err)
	}
	cleanups = append(cleanups, invoiceStoreCleanup)

	byOrderStore, byOrderStoreCleanup, err := mystore.New[invoice.InvoiceRef](c)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error creating invoice-by-order-store: %s", err)
	}
	cleanups = append(cleanups, byOrderStoreCleanup)

	// each service gets its own outbox so their transactions never contend
	orderPublisher, orderPubCleanup, err := mypublisher.New(c, "order-service", pubsub, queue, nower)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error creating order publisher: %s", err)
	}
	cleanups = append(cleanups, orderPubCleanup)

	invoicePublisher, invoicePubCleanup, err := mypublisher.New(c, "invoice-service", pubsub, queue, nower)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error creating invoice publisher: %s", err)
	}
	cleanups = append(cleanups, invoicePubCleanup)

	router := mux.NewRouter()

	orderPublisher.RegisterEndpoints(c, router)
	invoicePublisher.RegisterEndpoints(c, router)

	orderService := order.NewService(orderStore, nower, uuider, pubsub, orderPublisher, inbox)
	err = orderService.RegisterEndpoints(c, router)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error registering order service: %s", err)
	}

	invoiceService := invoice.NewService(invoiceStore, byOrderStore, fileStore, nower, uuider, pubsub, invoicePublisher, inbox)
	err = invoiceService.RegisterEndpoints(c, router)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error registering invoice service: %s", err)
	}

	gatewayService := gateway.NewService(nower,
		gateway.DependencyCheck{Name: "order-store", Ping: orderStore.Ping},
		gateway.DependencyCheck{Name: "invoice-store", Ping: invoiceStore.Ping},
	)
	gatewayService.RegisterEndpoints(c, router)

	// drainers push stored outbox events onto the bus
	cleanups = append(cleanups, orderPublisher.Start(c))
	cleanups = append(cleanups, invoicePublisher.Start(c))

	return router, cleanup, nil
}

func startWebServerBlocking(router *mux.Router) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: router,
	}

	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		<-sigs
		log.Printf("Shutting down webserver")
		_ = server.Shutdown(context.Background())
	}()

	log.Printf("Starting webserver on port %s (try http://localhost:%s)", port, port)
	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatalf("Error starting webserver on port %s: %s", port, err)
	}
}
