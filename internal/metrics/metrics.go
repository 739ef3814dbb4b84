package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairchat_messages_sent_total",
		Help: "Total number of chat messages created, by message type",
	}, []string{"type"})
	AttachmentsStored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_attachments_stored_total",
		Help: "Total number of attachment blobs written",
	})
	AttachmentBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_attachment_bytes_total",
		Help: "Total number of attachment bytes written",
	})
	FileDownloads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_file_downloads_total",
		Help: "Total number of authorized file downloads",
	})
	MessageCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairchat_message_cache_lookups_total",
		Help: "Message list cache lookups, by result",
	}, []string{"result"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		MessagesSent,
		AttachmentsStored,
		AttachmentBytes,
		FileDownloads,
		MessageCacheLookups,
		HttpRequestsTotal,
		HttpRequestDuration,
	)
}

// GinMiddleware records per-route request counts and latencies.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
