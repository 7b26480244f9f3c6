package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusHandler returns an HTTP handler for the /metrics endpoint,
// serving every metric registered in metrics.go via promauto's default
// registerer.
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}
