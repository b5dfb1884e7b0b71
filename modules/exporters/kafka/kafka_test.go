package kafka

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/iluxa/sflow-rt/flows"
	"github.com/iluxa/sflow-rt/thresholds"
)

func TestNewKafkaExporter(t *testing.T) {
	rest, mod, err := newKafkaExporter([]string{"k1:9092,k2:9092", "flows", "tail"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tail"}, rest)
	pe := mod.(*kafkaExporter)
	assert.Equal(t, "Kafka|flows", pe.ID())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, pe.brokers)
	assert.Equal(t, "flows.events", pe.eventTopic)

	_, _, err = newKafkaExporter([]string{"k1:9092"})
	assert.Error(t, err)
}

func TestKafkaPayloads(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	mock := mocks.NewAsyncProducer(t, cfg)
	mock.ExpectInputAndSucceed()
	mock.ExpectInputAndSucceed()

	pe := &kafkaExporter{id: "Kafka|flows", topic: "flows", eventTopic: "flows.events", producer: mock}
	pe.Flow(nil, &flows.CompletedFlow{
		FlowID: 3, Name: "tcp", Agent: "10.0.0.20", FlowKeys: "10.1.1.1,10.2.2.2",
		Value: 1500, Start: 1, End: 2, EndReason: flows.EndIdle,
	})
	pe.Event(&thresholds.Event{
		EventID: 1, ThresholdID: "busy", Agent: "10.0.0.20",
		Metric: "ifinutilization", Value: 95, Threshold: 80, Timestamp: 2,
	})

	msg := <-mock.Successes()
	assert.Equal(t, "flows", msg.Topic)
	raw, err := msg.Value.Encode()
	require.NoError(t, err)
	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, int64(3), doc["flowID"])
	assert.Equal(t, "tcp", doc["name"])
	assert.Equal(t, "10.1.1.1,10.2.2.2", doc["flowKeys"])
	assert.Equal(t, "idle", doc["endReason"])

	msg = <-mock.Successes()
	assert.Equal(t, "flows.events", msg.Topic)
	raw, err = msg.Value.Encode()
	require.NoError(t, err)
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, "busy", doc["thresholdID"])
	assert.Equal(t, 95.0, doc["value"])

	require.NoError(t, mock.Close())
}
