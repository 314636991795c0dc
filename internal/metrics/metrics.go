package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UploadsTotal counts upload attempts by declared kind and outcome.
var UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "filebroker",
	Name:      "uploads_total",
	Help:      "Upload attempts partitioned by file kind and outcome.",
}, []string{"kind", "outcome"})

// DownloadsTotal counts served downloads.
var DownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "filebroker",
	Name:      "downloads_total",
	Help:      "Number of file downloads served.",
})

// SweptFilesTotal counts temporary files reclaimed by the expiry sweep.
var SweptFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "filebroker",
	Name:      "swept_files_total",
	Help:      "Expired temporary files fully reclaimed by the sweep.",
})

// SweepErrorsTotal counts per-file errors accumulated during sweeps.
var SweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "filebroker",
	Name:      "sweep_errors_total",
	Help:      "Errors recorded while reclaiming expired files.",
})

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}
