package dispatcher

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// metrics counts admin commands by response-code class, exposed over
// the "stats" admin command rather than a separate HTTP listener,
// since this daemon has no web surface of its own. Registered against
// a private prometheus.Registry (not the global default) so multiple
// Server instances, as tests create, never collide on registration.
type metrics struct {
	reg           *prometheus.Registry
	commandsTotal *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		reg: reg,
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "netd_dispatcher_commands_total",
			Help: "Admin commands processed, by verb and response-code class.",
		}, []string{"verb", "class"}),
	}
}

func (m *metrics) observe(verb string, code int) {
	class := strconv.Itoa(code/100) + "xx"
	m.commandsTotal.WithLabelValues(verb, class).Inc()
}

// snapshot renders every counter in the registry as one line per
// label combination, sorted for stable output, the way the "stats"
// admin command reports them to a connected client.
func (m *metrics) snapshot() string {
	families, err := m.reg.Gather()
	if err != nil {
		return fmt.Sprintf("stats: gather failed: %v", err)
	}

	var lines []string
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			lines = append(lines, fmt.Sprintf("%s{%s} %v",
				family.GetName(), labelString(metric.GetLabel()), counterValue(metric)))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func labelString(labels []*dto.LabelPair) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
	}
	return strings.Join(parts, ",")
}

func counterValue(metric *dto.Metric) float64 {
	if c := metric.GetCounter(); c != nil {
		return c.GetValue()
	}
	if g := metric.GetGauge(); g != nil {
		return g.GetValue()
	}
	return 0
}
