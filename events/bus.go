package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
)

const (
	// A mutation reached Committed, RolledBack or Abandoned.
	TOPIC_MUTATION_SETTLED = "topic.mutation_settled"
	// A scope refetch or page load failed, the scope kept its last value.
	TOPIC_SCOPE_ERROR = "topic.scope_error"
	// The session was torn down because the credential expired or was
	// rejected.
	TOPIC_SESSION_EXPIRED = "topic.session_expired"
)

type MutationSettled struct {
	Id     string `json:"id"`
	Kind   string `json:"kind"`
	Scope  string `json:"scope"`
	Key    string `json:"key"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ScopeError struct {
	Scope string `json:"scope"`
	Error string `json:"error"`
}

type SessionExpired struct {
	UserId string `json:"userId"`
	Reason string `json:"reason"`
}

// Bus is the in-process event bus views listen on. It is backed by a
// watermill go channel, messages published while nobody subscribes are
// dropped. A nil *Bus drops everything.
type Bus struct {
	pubsub *gochannel.GoChannel
}

func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer:            100,
				BlockPublishUntilSubscriberAck: false,
			},
			watermill.NewStdLogger(false, false),
		),
	}
}

// Publish sends payload as JSON on topic.
func (b *Bus) Publish(topic string, payload interface{}) error {
	if b == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "cannot encode event for "+topic)
	}
	return b.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), data))
}

// Subscribe returns the messages of topic until ctx is done. Every message
// must be acked.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if b == nil {
		return nil, errors.New("no event bus")
	}
	return b.pubsub.Subscribe(ctx, topic)
}

func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	return b.pubsub.Close()
}

// Decode acks msg and decodes its payload into v.
func Decode(msg *message.Message, v interface{}) error {
	msg.Ack()
	return json.Unmarshal(msg.Payload, v)
}
