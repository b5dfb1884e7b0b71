// Package kafka exports completed flows and threshold events to Kafka
// topics as BSON documents.
package kafka

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Shopify/sarama"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/iluxa/sflow-rt/export"
	"github.com/iluxa/sflow-rt/flows"
	"github.com/iluxa/sflow-rt/thresholds"
	"github.com/iluxa/sflow-rt/util"
)

type kafkaExporter struct {
	id         string
	brokers    []string
	topic      string
	eventTopic string
	producer   sarama.AsyncProducer
}

// Flow publishes one completed flow as a BSON document.
func (pe *kafkaExporter) Flow(spec *flows.Spec, f *flows.CompletedFlow) {
	out, err := bson.Marshal(bson.M{
		"flowID":     int64(f.FlowID),
		"name":       f.Name,
		"agent":      f.Agent,
		"dataSource": f.DataSource,
		"flowKeys":   f.FlowKeys,
		"value":      f.Value,
		"start":      f.Start,
		"end":        f.End,
		"endReason":  f.EndReason.String(),
	})
	if err != nil {
		log.Println("kafka:", err)
		return
	}
	pe.producer.Input() <- &sarama.ProducerMessage{Topic: pe.topic, Key: nil, Value: sarama.ByteEncoder(out)}
}

// Event publishes one threshold event to the event topic.
func (pe *kafkaExporter) Event(e *thresholds.Event) {
	out, err := bson.Marshal(bson.M{
		"eventID":     int64(e.EventID),
		"thresholdID": e.ThresholdID,
		"agent":       e.Agent,
		"dataSource":  e.DataSource,
		"metric":      e.Metric,
		"flowKey":     e.FlowKey,
		"value":       e.Value,
		"threshold":   e.Threshold,
		"timestamp":   e.Timestamp,
	})
	if err != nil {
		log.Println("kafka:", err)
		return
	}
	pe.producer.Input() <- &sarama.ProducerMessage{Topic: pe.eventTopic, Key: nil, Value: sarama.ByteEncoder(out)}
}

// Finish waits for outstanding messages and shuts the producer down.
func (pe *kafkaExporter) Finish() {
	pe.producer.Close()
}

func (pe *kafkaExporter) ID() string {
	return pe.id
}

func (pe *kafkaExporter) Init() {
	producer, err := sarama.NewAsyncProducer(pe.brokers, nil)
	if err != nil {
		log.Fatal("Couldn't connect to Kafka at ", strings.Join(pe.brokers, ","), ". Error message: ", err)
	}
	pe.producer = producer
	go func() {
		for err := range producer.Errors() {
			log.Println("Failed to produce message with error ", err)
		}
	}()
}

func newKafkaExporter(args []string) (arguments []string, ret util.Module, err error) {
	if len(args) < 2 {
		return nil, nil, errors.New("kafka exporter needs a broker list and a topic name as argument")
	}

	brokers := strings.Split(args[0], ",")
	topic := args[1]
	arguments = args[2:]

	ret = &kafkaExporter{
		id:         "Kafka|" + topic,
		brokers:    brokers,
		topic:      topic,
		eventTopic: topic + ".events",
	}
	return
}

func kafkaHelp(name string) {
	fmt.Fprintf(os.Stderr, `
The %s exporter writes completed flows to a Kafka topic with one BSON
document per message. Threshold events go to "<topic>.events" with the
same encoding.

As argument, a comma separated broker list (e.g. "localhost:9092") and a
topic name are needed.

Usage:
  export %s kafka:9092 topic_name
`, name, name)
}

func init() {
	export.RegisterExporter("kafka", "Exports flows and events to Kafka topics.", newKafkaExporter, kafkaHelp)
}
