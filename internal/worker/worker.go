// Package worker provides a NATS worker that feeds recommendation intake from
// an upstream recommender into the editing session.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

var (
	// ErrSubjectEmpty indicates that the intake subject is empty.
	ErrSubjectEmpty = errors.New("intake subject cannot be empty")
	// ErrLoaderNil indicates that no loader was supplied.
	ErrLoaderNil = errors.New("intake loader cannot be nil")
)

// Loader replaces the block list with a recommendation payload.
type Loader interface {
	LoadRecommendations(data []byte) (int, error)
}

// IntakeReply is the response sent to requesters.
type IntakeReply struct {
	IntakeID string `json:"intake_id"`
	Blocks   int    `json:"blocks"`
	Error    string `json:"error,omitempty"`
}

// IntakeWorker listens for recommendation payloads on a NATS subject.
type IntakeWorker struct {
	natsConnection *nats.Conn
	subject        string
	loader         Loader
	log            *logger.Logger
	loaded         chan IntakeReply
}

// NewIntakeWorker creates a new instance of the intake worker.
func NewIntakeWorker(
	natsConnection *nats.Conn,
	subject string,
	loader Loader,
	log *logger.Logger,
) (*IntakeWorker, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	if loader == nil {
		return nil, ErrLoaderNil
	}

	return &IntakeWorker{
		natsConnection: natsConnection,
		subject:        subject,
		loader:         loader,
		log:            log,
		loaded:         make(chan IntakeReply, 1),
	}, nil
}

// Loaded delivers the outcome of each handled payload. Outcomes are dropped
// when nobody is receiving.
func (w *IntakeWorker) Loaded() <-chan IntakeReply {
	return w.loaded
}

// Run starts the worker and begins listening for messages.
func (w *IntakeWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for recommendation intake on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *IntakeWorker) handleMessage(msg *nats.Msg) {
	reply := IntakeReply{IntakeID: uuid.NewString()}

	blocks, err := w.loader.LoadRecommendations(msg.Data)
	if err != nil {
		w.log.Error("Failed to load recommendation intake %s: %v", reply.IntakeID, err)
		reply.Error = err.Error()
	} else {
		w.log.Info("Recommendation intake %s loaded %d blocks", reply.IntakeID, blocks)
		reply.Blocks = blocks
	}

	select {
	case w.loaded <- reply:
	default:
	}

	if msg.Reply == "" {
		return
	}

	err = w.publishReply(msg, reply)
	if err != nil {
		w.log.Error("Failed to reply to intake %s: %v", reply.IntakeID, err)
	}
}

// publishReply marshals and responds with the intake outcome.
func (w *IntakeWorker) publishReply(msg *nats.Msg, reply IntakeReply) error {
	replyData, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal intake reply: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish intake reply: %w", err)
	}

	return nil
}
