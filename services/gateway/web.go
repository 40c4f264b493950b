package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/invoicebackend/lib/mycontext"
	"github.com/MarcGrol/invoicebackend/lib/myhttp"
	"github.com/MarcGrol/invoicebackend/lib/mylog"
	"github.com/MarcGrol/invoicebackend/lib/mytime"
)

const checkTimeout = 2 * time.Second

// DependencyCheck probes the connectivity of one downstream dependency
type DependencyCheck struct {
	Name string
	Ping func(c context.Context) error
}

type DependencyStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status       string             `json:"status"`
	Timestamp    time.Time          `json:"timestamp"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

type webService struct {
	logger mylog.Logger
	nower  mytime.Nower
	checks []DependencyCheck
}

func NewService(nower mytime.Nower, checks ...DependencyCheck) *webService {
	return &webService{
		logger: mylog.New("gateway"),
		nower:  nower,
		checks: checks,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) {
	router.HandleFunc("/health", s.healthPage()).Methods("GET")
	router.HandleFunc("/health/gateway", s.livenessPage()).Methods("GET")
}

// healthPage reports per-dependency status. A broken dependency is reported
// as degraded but never fails the whole probe.
func (s *webService) healthPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		resp := HealthResponse{
			Status:    "ok",
			Timestamp: s.nower.Now(),
		}

		for _, check := range s.checks {
			status := DependencyStatus{
				Name:   check.Name,
				Status: "ok",
			}

			checkCtx, cancel := context.WithTimeout(c, checkTimeout)
			err := check.Ping(checkCtx)
			cancel()
			if err != nil {
				s.logger.Log(c, "", mylog.SeverityWarn, "Dependency %s is unhealthy: %s", check.Name, err)
				status.Status = "down"
				status.Error = err.Error()
				resp.Status = "degraded"
			}

			resp.Dependencies = append(resp.Dependencies, status)
		}

		errorWriter.Write(c, w, http.StatusOK, resp)
	}
}

func (s *webService) livenessPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: "ok",
		})
	}
}
