package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics — счётчики publisher'а и consumer'а.
//
// Регистрируются в собственном реестре, чтобы тесты и несколько
// экземпляров в одном процессе не конфликтовали с глобальным.
type Metrics struct {
	Registry *prometheus.Registry

	Published     prometheus.Counter
	PublishErrors prometheus.Counter
	Consumed      prometheus.Counter
	Settled       *prometheus.CounterVec
}

// NewMetrics создаёт и регистрирует метрики.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fanoutctl",
			Name:      "messages_published_total",
			Help:      "Messages published to the fanout exchange.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fanoutctl",
			Name:      "publish_errors_total",
			Help:      "Failed publish attempts.",
		}),
		Consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fanoutctl",
			Name:      "messages_consumed_total",
			Help:      "Deliveries received from the queue.",
		}),
		Settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fanoutctl",
			Name:      "messages_settled_total",
			Help:      "Deliveries settled with the broker, by decision.",
		}, []string{"decision"}),
	}

	reg.MustRegister(
		m.Published,
		m.PublishErrors,
		m.Consumed,
		m.Settled,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler возвращает mux с /healthz и /metrics.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	return mux
}

// ServeMetrics поднимает HTTP сервер метрик и останавливает его при отмене ctx.
func ServeMetrics(ctx context.Context, addr string, m *Metrics, logger *slog.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
}
