package httpclient

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// 認証付きリクエストの結果ラベル。
const (
	outcomePassed   = "passed"
	outcomeRenewed  = "renewed"
	outcomeExpired  = "expired"
	outcomeFailed   = "failed"
	renewalSuccess  = "success"
	renewalRejected = "rejected"
	renewalFailed   = "failed"
)

// metrics はGatewayのPrometheusカウンタ。
type metrics struct {
	// requests はDo呼び出しの結果別件数。
	requests *prometheus.CounterVec
	// renewals はトークン更新リクエストの結果別件数。
	renewals *prometheus.CounterVec
}

// newMetrics はカウンタを生成してregに登録する。
// 同じ名前のカウンタが登録済みの場合はそれを共有する。
func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		requests: registerCounterVec(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ordora",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total number of authenticated requests by outcome.",
			},
			[]string{"outcome"},
		)),
		renewals: registerCounterVec(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ordora",
				Subsystem: "gateway",
				Name:      "renewals_total",
				Help:      "Total number of access token renewal attempts by result.",
			},
			[]string{"result"},
		)),
	}
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *metrics) request(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *metrics) renewal(result string) {
	if m == nil {
		return
	}
	m.renewals.WithLabelValues(result).Inc()
}
