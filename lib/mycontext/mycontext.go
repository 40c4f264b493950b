package mycontext

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// CtxTraceContext is a context key for the gcloud trace context (used by mylog)
type CtxTraceContext struct{}

// CtxCorrelationID is a context key for the correlation-id that ties a chain
// of events back to the command that triggered it
type CtxCorrelationID struct{}

func ContextFromHTTPRequest(r *http.Request) context.Context {
	var trace string

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	traceContext := r.Header.Get("X-Cloud-Trace-Context")
	traceParts := strings.Split(traceContext, "/")

	if len(traceParts) > 0 && len(traceParts[0]) > 0 {
		trace = fmt.Sprintf("projects/%s/traces/%s", projectID, traceParts[0])
	}

	ctx := context.WithValue(context.Background(), CtxTraceContext{}, trace)

	correlationID := r.Header.Get("X-Correlation-ID")
	if correlationID != "" {
		ctx = WithCorrelationID(ctx, correlationID)
	}

	return ctx
}

func WithCorrelationID(c context.Context, correlationID string) context.Context {
	return context.WithValue(c, CtxCorrelationID{}, correlationID)
}

func CorrelationID(c context.Context) string {
	correlationID, _ := c.Value(CtxCorrelationID{}).(string)
	return correlationID
}
