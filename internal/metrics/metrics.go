package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 结果标签取值
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Recorder 业务指标记录接口
type Recorder interface {
	AllocationRun(result string, elapsed time.Duration, seats int)
	Publish(result string, published int)
	SeatEdit(op, result string)
	ReferentChange(op, result string)
	LockWait(backend string, waited time.Duration)
	HTTPRequest(method, route string, status int, elapsed time.Duration)
}

// Nop 不记录任何指标，供测试与关闭指标时使用
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) AllocationRun(string, time.Duration, int) {}
func (Nop) Publish(string, int) {}
func (Nop) SeatEdit(string, string) {}
func (Nop) ReferentChange(string, string) {}
func (Nop) LockWait(string, time.Duration) {}
func (Nop) HTTPRequest(string, string, int, time.Duration) {}

// Prometheus 基于 Prometheus 的指标实现
type Prometheus struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	seatsPerRun   prometheus.Histogram
	publishes     *prometheus.CounterVec
	published     prometheus.Counter
	seatEdits     *prometheus.CounterVec
	referentOps   *prometheus.CounterVec
	lockWait      *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus 创建指标实现；reg 为 nil 时使用默认注册表
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "enrollment"
	}
	p := &Prometheus{reg: reg, namespace: namespace}
	p.ensureRegistered()
	return p
}

func (p *Prometheus) ensureRegistered() {
	p.once.Do(func() {
		p.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "runs_total",
			Help:      "Allocation runs by result.",
		}, []string{"result"})
		p.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "run_duration_seconds",
			Help:      "Duration of successful allocation runs, including persistence.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		})
		p.seatsPerRun = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "seats_allocated",
			Help:      "Seats granted per successful allocation run.",
			Buckets:   prometheus.LinearBuckets(0, 50, 10),
		})
		p.publishes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "publish_total",
			Help:      "PublishAll calls by result.",
		}, []string{"result"})
		p.published = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "published_records_total",
			Help:      "Allocation records moved to PUBLISHED.",
		})
		p.seatEdits = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "manual_edits_total",
			Help:      "Manual allocation edits by operation and result.",
		}, []string{"op", "result"})
		p.referentOps = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "referent",
			Name:      "operations_total",
			Help:      "Referent assign/unassign operations by result.",
		}, []string{"op", "result"})
		p.lockWait = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "lock",
			Name:      "wait_seconds",
			Help:      "Time spent acquiring the per-period lock by backend.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"backend"})
		p.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"})
		p.httpDurations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"})

		p.reg.MustRegister(
			p.runs, p.runDuration, p.seatsPerRun,
			p.publishes, p.published, p.seatEdits,
			p.referentOps, p.lockWait,
			p.httpRequests, p.httpDurations,
		)
	})
}

func (p *Prometheus) AllocationRun(result string, elapsed time.Duration, seats int) {
	p.runs.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		p.runDuration.Observe(elapsed.Seconds())
		p.seatsPerRun.Observe(float64(seats))
	}
}

func (p *Prometheus) Publish(result string, published int) {
	p.publishes.WithLabelValues(result).Inc()
	if published > 0 {
		p.published.Add(float64(published))
	}
}

func (p *Prometheus) SeatEdit(op, result string) {
	p.seatEdits.WithLabelValues(op, result).Inc()
}

func (p *Prometheus) ReferentChange(op, result string) {
	p.referentOps.WithLabelValues(op, result).Inc()
}

func (p *Prometheus) LockWait(backend string, waited time.Duration) {
	p.lockWait.WithLabelValues(backend).Observe(waited.Seconds())
}

func (p *Prometheus) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDurations.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
