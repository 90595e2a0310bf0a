package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestPublisher_PublishJSON(t *testing.T) {
	client := &mockSQS{}
	p := NewPublisher(client, "https://sqs.local/queue")

	err := p.PublishJSON(context.Background(), map[string]string{"order_id": "o1"}, map[string]string{
		"kind":           "status_update",
		"correlation_id": "",
	})
	require.NoError(t, err)

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "https://sqs.local/queue", *in.QueueUrl)
	assert.JSONEq(t, `{"order_id":"o1"}`, *in.MessageBody)
	require.Contains(t, in.MessageAttributes, "kind")
	assert.NotContains(t, in.MessageAttributes, "correlation_id")
	assert.Equal(t, "status_update", *in.MessageAttributes["kind"].StringValue)
}

func TestPublisher_SendError(t *testing.T) {
	p := NewPublisher(&mockSQS{err: errors.New("boom")}, "q")

	err := p.Send(context.Background(), "{}", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send message")
}

func TestMetrics_Count(t *testing.T) {
	client := &mockCloudWatch{}
	m := NewMetrics(client, "Storefront")

	require.NoError(t, m.Count(context.Background(), "OrdersCreated", 1, map[string]string{"Status": "Pending"}))

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "Storefront", *in.Namespace)
	require.Len(t, in.MetricData, 1)
	assert.Equal(t, "OrdersCreated", *in.MetricData[0].MetricName)
	assert.Equal(t, 1.0, *in.MetricData[0].Value)
	require.Len(t, in.MetricData[0].Dimensions, 1)
}
