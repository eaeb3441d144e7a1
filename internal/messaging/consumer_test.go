package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"catalog-service/internal/repository/memstore"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// fakeAcknowledger records how a delivery was settled
type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = append(f.nacked, tag)
	f.requeue = append(f.requeue, requeue)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type publishedReply struct {
	key string
	msg amqp.Publishing
}

// fakePublisher captures replies instead of sending them
type fakePublisher struct {
	mu      sync.Mutex
	replies []publishedReply
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, publishedReply{key: key, msg: msg})
	return nil
}

func (f *fakePublisher) decoded(t *testing.T, i int) Reply {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.replies) {
		t.Fatalf("expected reply %d, only %d published", i, len(f.replies))
	}
	var r struct {
		ID       string          `json:"id"`
		Response json.RawMessage `json:"response"`
		Err      *ReplyError     `json:"err"`
	}
	if err := json.Unmarshal(f.replies[i].msg.Body, &r); err != nil {
		t.Fatalf("reply is not JSON: %v", err)
	}
	return Reply{ID: r.ID, Response: r.Response, Err: r.Err}
}

func newTestConsumer(store *memstore.Store) *Consumer {
	return NewConsumer(ConsumerConfig{Workers: 4}, newCatalogDispatcher(store), zap.NewNop())
}

func delivery(ack amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger:  ack,
		DeliveryTag:   tag,
		ReplyTo:       "amq.rabbitmq.reply-to",
		CorrelationId: fmt.Sprintf("corr-%d", tag),
		Body:          []byte(body),
	}
}

func TestHandleDelivery_SuccessAcksAndReplies(t *testing.T) {
	consumer := newTestConsumer(memstore.New())
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}

	body := fmt.Sprintf(`{"pattern":"product.create","data":{"tenantId":%q,"name":"Pizza","slug":"pizza"},"id":"req-1"}`, uuid.New())
	consumer.HandleDelivery(context.Background(), pub, delivery(ack, 1, body))

	if len(ack.acked) != 1 || len(ack.nacked) != 0 {
		t.Fatalf("expected one ack, got acked=%v nacked=%v", ack.acked, ack.nacked)
	}

	reply := pub.decoded(t, 0)
	if reply.Err != nil {
		t.Fatalf("unexpected error reply: %+v", reply.Err)
	}
	if reply.ID != "req-1" {
		t.Errorf("expected reply id req-1, got %q", reply.ID)
	}
	if pub.replies[0].key != "amq.rabbitmq.reply-to" || pub.replies[0].msg.CorrelationId != "corr-1" {
		t.Errorf("reply not routed back: %+v", pub.replies[0])
	}

	var product struct {
		Version int    `json:"version"`
		Slug    string `json:"slug"`
	}
	if err := json.Unmarshal(reply.Response.(json.RawMessage), &product); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if product.Version != 1 || product.Slug != "pizza" {
		t.Errorf("unexpected product in reply: %+v", product)
	}
}

func TestHandleDelivery_PatternFromTypeProperty(t *testing.T) {
	consumer := newTestConsumer(memstore.New())
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}

	d := delivery(ack, 2, fmt.Sprintf(`{"tenantId":%q,"name":"Bare","slug":"bare"}`, uuid.New()))
	d.Type = PatternProductCreate
	consumer.HandleDelivery(context.Background(), pub, d)

	if len(ack.acked) != 1 {
		t.Fatalf("expected ack, got %+v", ack)
	}
	if reply := pub.decoded(t, 0); reply.Err != nil {
		t.Fatalf("unexpected error reply: %+v", reply.Err)
	}
}

func TestHandleDelivery_BarePayloadIDIsNotTheReplyID(t *testing.T) {
	consumer := newTestConsumer(memstore.New())
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}

	productID := uuid.New().String()
	d := delivery(ack, 5, fmt.Sprintf(`{"id":%q,"tenantId":%q,"version":1}`, productID, uuid.New()))
	d.Type = PatternProductDelete
	consumer.HandleDelivery(context.Background(), pub, d)

	if len(ack.acked) != 1 {
		t.Fatalf("expected ack, got %+v", ack)
	}
	reply := pub.decoded(t, 0)
	if reply.ID != "corr-5" {
		t.Errorf("expected reply id from correlation id, got %q", reply.ID)
	}
	if reply.Err == nil || reply.Err.Type != TypeNotFound {
		t.Errorf("expected not found reply for the payload id, got %+v", reply.Err)
	}
}

func TestHandleDelivery_MalformedBodyIsAckedWithParseError(t *testing.T) {
	consumer := newTestConsumer(memstore.New())
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}

	consumer.HandleDelivery(context.Background(), pub, delivery(ack, 3, `{"pattern":`))

	if len(ack.acked) != 1 || len(ack.nacked) != 0 {
		t.Fatalf("malformed input must be acked, got %+v", ack)
	}
	reply := pub.decoded(t, 0)
	if reply.Err == nil || reply.Err.Type != TypeParse {
		t.Fatalf("expected parse_error reply, got %+v", reply.Err)
	}
}

func TestHandleDelivery_InfrastructureFailureRequeuesOnce(t *testing.T) {
	store := memstore.New()
	consumer := newTestConsumer(store)
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}

	store.SetFailure(errors.New("too many connections"))
	body := fmt.Sprintf(`{"pattern":"product.create","data":{"tenantId":%q,"name":"Down","slug":"down"}}`, uuid.New())

	consumer.HandleDelivery(context.Background(), pub, delivery(ack, 4, body))

	redelivered := delivery(ack, 5, body)
	redelivered.Redelivered = true
	consumer.HandleDelivery(context.Background(), pub, redelivered)

	if len(ack.acked) != 0 {
		t.Fatalf("infrastructure failures must not be acked, got %v", ack.acked)
	}
	if len(ack.requeue) != 2 || !ack.requeue[0] || ack.requeue[1] {
		t.Fatalf("expected requeue then dead-letter, got %v", ack.requeue)
	}
	if len(pub.replies) != 0 {
		t.Errorf("nacked deliveries must not be answered, got %d replies", len(pub.replies))
	}
}

func TestConsume_ProcessesAllDeliveriesThenStops(t *testing.T) {
	consumer := newTestConsumer(memstore.New())
	ack := &fakeAcknowledger{}
	pub := &fakePublisher{}
	tenantID := uuid.New()

	const n = 10
	deliveries := make(chan amqp.Delivery, n)
	for i := 0; i < n; i++ {
		body := fmt.Sprintf(`{"pattern":"product.create","data":{"tenantId":%q,"name":"P","slug":"slug-%d"}}`, tenantID, i)
		deliveries <- delivery(ack, uint64(i+1), body)
	}
	close(deliveries)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := consumer.consume(ctx, pub, deliveries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(ack.acked) != n {
		t.Fatalf("expected %d acks, got %d", n, len(ack.acked))
	}
	for i := 0; i < n; i++ {
		if reply := pub.decoded(t, i); reply.Err != nil {
			t.Errorf("reply %d: unexpected error %+v", i, reply.Err)
		}
	}
}
