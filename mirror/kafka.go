package mirror

import (
	"context"
	"encoding/json"

	"github.com/twmb/franz-go/pkg/kgo"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/consulctl/trace"
	"github.com/ceyewan/consulctl/xerrors"
)

// KafkaSink 每个变更一条 JSON 记录，key 为服务 ID，同一实例的变更落在同一分区
type KafkaSink struct {
	client *kgo.Client
	topic  string
	tracer oteltrace.Tracer
}

// NewKafkaSink 创建 Kafka Sink，topic 为空时使用 DefaultKafkaTopic
func NewKafkaSink(client *kgo.Client, topic string, tracer oteltrace.Tracer) *KafkaSink {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	return &KafkaSink{client: client, topic: topic, tracer: tracer}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Apply(ctx context.Context, u Update) error {
	if len(u.Changes) == 0 {
		return nil
	}

	ctx, span, headers := trace.StartProducerSpan(ctx, s.tracer, trace.MessagingSystemKafka, s.topic)
	defer span.End()

	records, err := s.records(u.Changes, headers)
	if err != nil {
		trace.MarkSpanError(span, err)
		return err
	}
	if err := s.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		trace.MarkSpanError(span, err)
		return xerrors.Wrapf(err, "produce %d changes to %s", len(records), s.topic)
	}
	return nil
}

func (s *KafkaSink) records(changes []ChangeEvent, headers map[string]string) ([]*kgo.Record, error) {
	records := make([]*kgo.Record, 0, len(changes))
	for _, c := range changes {
		value, err := json.Marshal(c)
		if err != nil {
			return nil, xerrors.Wrapf(err, "encode change for %s", c.ServiceID)
		}

		rec := &kgo.Record{
			Topic: s.topic,
			Key:   []byte(c.ServiceID),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "change-type", Value: []byte(c.Type)},
			},
		}
		for k, v := range headers {
			rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
		records = append(records, rec)
	}
	return records, nil
}
