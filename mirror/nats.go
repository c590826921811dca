package mirror

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/consulctl/trace"
	"github.com/ceyewan/consulctl/xerrors"
)

// NATSSink 每个变更以 JSON 发布到 <subject>.<service>，追踪上下文放在消息头中
type NATSSink struct {
	conn    *nats.Conn
	subject string
	tracer  oteltrace.Tracer
}

// NewNATSSink 创建 NATS Sink，subject 为空时使用 DefaultNATSSubject
func NewNATSSink(conn *nats.Conn, subject string, tracer oteltrace.Tracer) *NATSSink {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSSink{conn: conn, subject: subject, tracer: tracer}
}

func (s *NATSSink) Name() string { return "nats" }

// SubjectFor 返回服务对应的 subject，服务名中 NATS 保留的字符替换为 "_"
func (s *NATSSink) SubjectFor(service string) string {
	return s.subject + "." + subjectToken.Replace(service)
}

var subjectToken = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

func (s *NATSSink) Apply(ctx context.Context, u Update) error {
	if len(u.Changes) == 0 {
		return nil
	}

	var errs []error
	for _, c := range u.Changes {
		if err := s.publish(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		errs = append(errs, xerrors.Wrap(err, "flush nats connection"))
	}
	return xerrors.Combine(errs...)
}

func (s *NATSSink) publish(ctx context.Context, c ChangeEvent) error {
	subject := s.SubjectFor(c.Service)
	_, span, headers := trace.StartProducerSpan(ctx, s.tracer, trace.MessagingSystemNATS, subject)
	defer span.End()

	data, err := json.Marshal(c)
	if err != nil {
		trace.MarkSpanError(span, err)
		return xerrors.Wrapf(err, "encode change for %s", c.ServiceID)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set("Change-Type", string(c.Type))
	for k, v := range headers {
		msg.Header.Set(k, v)
	}
	if err := s.conn.PublishMsg(msg); err != nil {
		trace.MarkSpanError(span, err)
		return xerrors.Wrapf(err, "publish %s", subject)
	}
	return nil
}
