package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yottachain/mena/internal/action"
)

// Injector provides admin and manual action injection, bypassing NATS.
// It is for operator tooling and bootstrap, not for high-throughput
// ingestion.
type Injector struct {
	actionChan chan<- action.Action
}

func NewInjector(actionChan chan<- action.Action) *Injector {
	return &Injector{actionChan: actionChan}
}

// header fabricates the upstream fields an operator submission lacks.
// Admin-injected actions use the wall-clock microsecond as their
// sequence, which keeps per-caller ordering monotonic between restarts.
func injectHeader(caller string) action.Header {
	now := time.Now()
	return action.Header{
		Caller: caller,
		Now:    uint64(now.UnixMilli()),
		Nonce:  uuid.New().String(),
		Seq:    now.UnixMicro(),
	}
}

// Inject fills in the header fields of a prepared action and queues it
// for the core. The payload's own fields must already be set.
func (s *Injector) Inject(ctx context.Context, caller string, prepare func(action.Header) action.Action) error {
	if caller == "" {
		return fmt.Errorf("caller must not be empty")
	}
	act := prepare(injectHeader(caller))

	select {
	case s.actionChan <- act:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectBootstrap queues the one-time system initialization.
func (s *Injector) InjectBootstrap(ctx context.Context, selfAccount string) error {
	return s.Inject(ctx, selfAccount, func(h action.Header) action.Action {
		return &action.InitSystem{Header: h}
	})
}

// InjectParsed queues an action that already carries its header, such
// as one replayed from an operator-supplied file.
func (s *Injector) InjectParsed(ctx context.Context, act action.Action) error {
	if act.ActorName() == "" {
		return fmt.Errorf("caller must not be empty")
	}
	select {
	case s.actionChan <- act:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
