package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheus_AllocationRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.AllocationRun(ResultSuccess, 120*time.Millisecond, 12)
	p.AllocationRun(ResultRejected, 0, 0)
	p.AllocationRun(ResultSuccess, 80*time.Millisecond, 16)

	if got := testutil.ToFloat64(p.runs.WithLabelValues(ResultSuccess)); got != 2 {
		t.Errorf("期望 success=2，实际 %v", got)
	}
	if got := testutil.ToFloat64(p.runs.WithLabelValues(ResultRejected)); got != 1 {
		t.Errorf("期望 rejected=1，实际 %v", got)
	}
	if n := testutil.CollectAndCount(p.seatsPerRun); n != 1 {
		t.Errorf("期望 1 个直方图指标，实际 %d", n)
	}
}

func TestPrometheus_PublishCountsRecords(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry(), "test")

	p.Publish(ResultSuccess, 7)
	p.Publish(ResultRejected, 0)

	if got := testutil.ToFloat64(p.published); got != 7 {
		t.Errorf("期望 published=7，实际 %v", got)
	}
}

func TestPrometheus_HTTPRequest(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry(), "test")

	p.HTTPRequest("POST", "/api/v1/allocations/run", 409, 5*time.Millisecond)

	if got := testutil.ToFloat64(p.httpRequests.WithLabelValues("POST", "/api/v1/allocations/run", "409")); got != 1 {
		t.Errorf("期望 1 次请求，实际 %v", got)
	}
}

func TestNop_SatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.AllocationRun(ResultSuccess, time.Second, 1)
	r.LockWait("local", time.Millisecond)
}
