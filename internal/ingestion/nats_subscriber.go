package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds raw
// actions into the deterministic core via the actionChan. JetStream is
// the primary ingestion surface; each action family has its own subject
// so producers can scale independently.
type NATSSubscriber struct {
	js         jetstream.JetStream
	actionChan chan<- RawAction
	consumers  []jetstream.ConsumeContext
}

// RawAction is the undecoded message off NATS, ready for the shell to
// parse and validate before anything reaches the core.
type RawAction struct {
	Subject   string
	Data      []byte
	Timestamp time.Time

	// AckFunc acknowledges the message once it is queued for the
	// engine; NakFunc requests redelivery.
	AckFunc func()
	NakFunc func()
}

// SubjectConfig maps a NATS subject to its durable consumer and stream.
type SubjectConfig struct {
	Subject      string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject layout, one subject per
// action family.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "mena.system.>", ConsumerName: "core-system", StreamName: "MENA_SYSTEM"},
		{Subject: "mena.users.>", ConsumerName: "core-users", StreamName: "MENA_USERS"},
		{Subject: "mena.deposits.>", ConsumerName: "core-deposits", StreamName: "MENA_DEPOSITS"},
		{Subject: "mena.miners.>", ConsumerName: "core-miners", StreamName: "MENA_MINERS"},
		{Subject: "mena.pools.>", ConsumerName: "core-pools", StreamName: "MENA_POOLS"},
		{Subject: "mena.tokens.>", ConsumerName: "core-tokens", StreamName: "MENA_TOKENS"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, actionChan chan<- RawAction) *NATSSubscriber {
	return &NATSSubscriber{
		js:         js,
		actionChan: actionChan,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawAction{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.actionChan <- raw:
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		log.Printf("INFO: subscribed to %s (consumer=%s)", cfg.Subject, cfg.ConsumerName)
	}

	return nil
}

// EnsureStreams creates one file-backed stream per action family,
// limits retention, 72 hour max age. One stream per family keeps a
// burst in one domain from aging out another's backlog.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	for _, sub := range DefaultSubjects() {
		cfg := jetstream.StreamConfig{
			Name:      sub.StreamName,
			Subjects:  []string{sub.Subject},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		}
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Printf("INFO: ensured stream %s", cfg.Name)
	}
	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	log.Println("INFO: NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
