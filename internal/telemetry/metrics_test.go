package telemetry_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/glenn-edgar/kbcoord/internal/telemetry"
)

func TestTelemetry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "telemetry suite")
}

var _ = Describe("Metrics", func() {
	var (
		m        *telemetry.Metrics
		registry *prometheus.Registry
	)

	BeforeEach(func() {
		registry = prometheus.NewRegistry()
		m = telemetry.NewMetricsWithRegistry(registry)
	})

	It("registers every collector under the kbcoord_ namespace", func() {
		families, err := registry.Gather()
		Expect(err).ToNot(HaveOccurred())
		Expect(families).ToNot(BeEmpty())
		for _, f := range families {
			Expect(f.GetName()).To(HavePrefix("kbcoord_"))
		}
	})

	It("counts operations by module, operation, and outcome", func() {
		m.ObserveOperation("job", "push", "ok", 0.01)
		m.ObserveOperation("job", "push", "capacity", 0.02)

		families, err := registry.Gather()
		Expect(err).ToNot(HaveOccurred())

		var found bool
		for _, f := range families {
			if f.GetName() == "kbcoord_kb_operations_total" {
				found = true
				Expect(f.GetMetric()).To(HaveLen(2))
			}
		}
		Expect(found).To(BeTrue())
	})

	It("observes operation duration as a histogram", func() {
		m.ObserveOperation("stream", "push", "ok", 0.123)

		families, err := registry.Gather()
		Expect(err).ToNot(HaveOccurred())

		var found bool
		for _, f := range families {
			if f.GetName() == "kbcoord_kb_operation_duration_seconds" {
				found = true
				Expect(f.GetType()).To(Equal(dto.MetricType_HISTOGRAM))
			}
		}
		Expect(found).To(BeTrue())
	})
})
