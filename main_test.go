package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcGrol/invoicebackend/services/invoice"
	"github.com/MarcGrol/invoicebackend/services/order"
)

// switchableHandler lets us start the listener before the router exists, so
// subscriptions created during composition can point at the listener's URL
type switchableHandler struct {
	mutex   sync.Mutex
	handler http.Handler
}

func (s *switchableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	handler := s.handler
	s.mutex.Unlock()

	if handler == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	handler.ServeHTTP(w, r)
}

func (s *switchableHandler) set(handler http.Handler) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.handler = handler
}

func TestChoreography(t *testing.T) {

	t.Run("Shipped before upload", func(t *testing.T) {
		client, baseURL := startComposedSystem(t)

		// given: an order that ships before its invoice exists
		orderUID := createOrder(t, client, baseURL)
		updateOrderStatus(t, client, baseURL, orderUID, "SHIPPED")

		// when: the seller uploads the invoice
		invoiceUID := uploadInvoice(t, client, baseURL, orderUID)

		// then: the uploaded-event reaches the order, the send-request
		// reaches the invoice, and the invoice goes out exactly once
		assert.Eventually(t, func() bool {
			o := getOrder(t, client, baseURL, orderUID)
			return o.InvoiceID == invoiceUID
		}, 5*time.Second, 50*time.Millisecond, "order should learn about its invoice")

		assert.Eventually(t, func() bool {
			inv := getInvoice(t, client, baseURL, invoiceUID)
			return inv.SentAt != nil
		}, 5*time.Second, 50*time.Millisecond, "invoice should be sent")
	})

	t.Run("Upload before shipped", func(t *testing.T) {
		client, baseURL := startComposedSystem(t)

		// given: the invoice arrives while the order is still open
		orderUID := createOrder(t, client, baseURL)
		invoiceUID := uploadInvoice(t, client, baseURL, orderUID)

		assert.Eventually(t, func() bool {
			o := getOrder(t, client, baseURL, orderUID)
			return o.InvoiceID == invoiceUID
		}, 5*time.Second, 50*time.Millisecond, "order should learn about its invoice")

		// invoice attached but nothing sent yet
		inv := getInvoice(t, client, baseURL, invoiceUID)
		assert.Nil(t, inv.SentAt)

		// when: the order ships afterwards
		updateOrderStatus(t, client, baseURL, orderUID, "SHIPPED")

		// then: the send-request goes out and the invoice is sent
		assert.Eventually(t, func() bool {
			inv := getInvoice(t, client, baseURL, invoiceUID)
			return inv.SentAt != nil
		}, 5*time.Second, 50*time.Millisecond, "invoice should be sent")
	})
}

func startComposedSystem(t *testing.T) (*http.Client, string) {
	switchable := &switchableHandler{}
	server := httptest.NewServer(switchable)
	t.Cleanup(server.Close)

	t.Setenv("BASE_URL", server.URL)
	t.Setenv("UPLOAD_DIR", t.TempDir())

	router, cleanup, err := compose(context.Background())
	require.NoError(t, err)
	t.Cleanup(cleanup)

	switchable.set(router)

	return server.Client(), server.URL
}

func createOrder(t *testing.T, client *http.Client, baseURL string) string {
	resp, err := client.Post(baseURL+"/api/order", "application/json",
		strings.NewReader(`{"price":199.99,"quantity":3,"productId":"p1","customerId":"c1","sellerId":"s1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)

	created := order.Order{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.UID)

	return created.UID
}

func updateOrderStatus(t *testing.T, client *http.Client, baseURL string, orderUID string, status string) {
	request, err := http.NewRequest(http.MethodPut, baseURL+"/api/order/"+orderUID,
		strings.NewReader(`{"status":"`+status+`"}`))
	require.NoError(t, err)

	resp, err := client.Do(request)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
}

func getOrder(t *testing.T, client *http.Client, baseURL string, orderUID string) order.Order {
	resp, err := client.Get(baseURL + "/api/order/" + orderUID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	got := order.Order{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

	return got
}

func getInvoice(t *testing.T, client *http.Client, baseURL string, invoiceUID string) invoice.Invoice {
	resp, err := client.Get(baseURL + "/api/invoice/" + invoiceUID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	got := invoice.Invoice{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

	return got
}

func uploadInvoice(t *testing.T, client *http.Client, baseURL string, orderUID string) string {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("orderId", orderUID))
	require.NoError(t, writer.WriteField("sellerId", "s1"))
	part, err := writer.CreateFormFile("invoice", "invoice.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 test invoice"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := client.Post(baseURL+"/api/invoice", writer.FormDataContentType(), body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 201, resp.StatusCode)

	uploaded := invoice.Invoice{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&uploaded))
	require.NotEmpty(t, uploaded.UID)

	return uploaded.UID
}
