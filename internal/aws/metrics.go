package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const metricsNamespace = "POSSync"

// Metrics publishes sync engine counters to CloudWatch. A nil or disabled
// Metrics drops everything, so callers never guard their calls.
type Metrics struct {
	CloudWatch CloudWatchAPI
	Terminal   string // terminal id dimension
	nowFunc    func() time.Time
}

// NewMetrics returns a Metrics reporter. Pass a nil client to disable reporting.
func NewMetrics(client CloudWatchAPI, terminalID string) *Metrics {
	return &Metrics{
		CloudWatch: client,
		Terminal:   terminalID,
		nowFunc:    time.Now,
	}
}

// CountDispatch records one dispatch outcome: "success", "retryable" or "permanent".
func (m *Metrics) CountDispatch(ctx context.Context, outcome string) {
	m.put(ctx, "DispatchOutcome", 1, map[string]string{"Outcome": outcome})
}

// QueueDepth records the number of unsynced orders observed on a tick.
func (m *Metrics) QueueDepth(ctx context.Context, depth int) {
	m.put(ctx, "UnsyncedOrders", float64(depth), nil)
}

func (m *Metrics) put(ctx context.Context, name string, value float64, dims map[string]string) {
	if m == nil || m.CloudWatch == nil {
		return
	}
	ts := m.nowFunc()
	datum := cwtypes.MetricDatum{
		MetricName: &name,
		Timestamp:  &ts,
		Value:      &value,
	}
	if m.Terminal != "" {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{
			Name:  awsString("Terminal"),
			Value: &m.Terminal,
		})
	}
	for k, v := range dims {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{
			Name:  awsString(k),
			Value: &v,
		})
	}
	ns := metricsNamespace
	// best-effort: metric loss never affects order processing
	_, _ = m.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &ns,
		MetricData: []cwtypes.MetricDatum{datum},
	})
}
