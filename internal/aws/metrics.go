package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics publishes business counters to CloudWatch under a single namespace.
type Metrics struct {
	CloudWatch CloudWatchAPI
	Namespace  string
	nowFunc    func() time.Time
}

// NewMetrics returns a Metrics publisher for namespace.
func NewMetrics(client CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{
		CloudWatch: client,
		Namespace:  namespace,
		nowFunc:    time.Now,
	}
}

// Count records value occurrences of name with optional string dimensions.
func (m *Metrics) Count(ctx context.Context, name string, value float64, dims map[string]string) error {
	datum := cwtypes.MetricDatum{
		MetricName: String(name),
		Unit:       cwtypes.StandardUnitCount,
		Value:      &value,
		Timestamp:  timePtr(m.nowFunc()),
	}
	for k, v := range dims {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{Name: String(k), Value: String(v)})
	}

	_, err := m.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &m.Namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", name, err)
	}
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }
