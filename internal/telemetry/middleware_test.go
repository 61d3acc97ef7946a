package telemetry_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/glenn-edgar/kbcoord/internal/telemetry"
)

var _ = Describe("HTTPMetrics middleware", func() {
	var (
		m        *telemetry.Metrics
		registry *prometheus.Registry
		router   *chi.Mux
	)

	BeforeEach(func() {
		registry = prometheus.NewRegistry()
		m = telemetry.NewMetricsWithRegistry(registry)
		router = chi.NewRouter()
		router.Use(telemetry.HTTPMetrics(m))
	})

	It("labels the duration histogram by endpoint, method, and status", func() {
		router.Get("/registry", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/registry", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusOK))

		families, err := registry.Gather()
		Expect(err).ToNot(HaveOccurred())

		var found bool
		for _, f := range families {
			if f.GetName() == "kbcoord_http_request_duration_seconds" {
				found = true
				labels := f.GetMetric()[0].GetLabel()
				labelMap := map[string]string{}
				for _, l := range labels {
					labelMap[l.GetName()] = l.GetValue()
				}
				Expect(labelMap["endpoint"]).To(Equal("/registry"))
				Expect(labelMap["method"]).To(Equal(http.MethodGet))
				Expect(labelMap["status"]).To(Equal("200"))
			}
		}
		Expect(found).To(BeTrue())
	})

	It("does not panic with a nil Metrics", func() {
		r := chi.NewRouter()
		r.Use(telemetry.HTTPMetrics(nil))
		r.Get("/ok", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		w := httptest.NewRecorder()
		Expect(func() { r.ServeHTTP(w, req) }).ToNot(Panic())
	})
})

var _ = Describe("InFlightRequests middleware", func() {
	It("increments then decrements the in-flight gauge", func() {
		registry := prometheus.NewRegistry()
		m := telemetry.NewMetricsWithRegistry(registry)
		router := chi.NewRouter()
		router.Use(telemetry.InFlightRequests(m))
		router.Get("/ok", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		families, err := registry.Gather()
		Expect(err).ToNot(HaveOccurred())
		for _, f := range families {
			if f.GetName() == "kbcoord_http_requests_in_flight" {
				Expect(f.GetMetric()[0].GetGauge().GetValue()).To(Equal(float64(0)))
			}
		}
	})
})
