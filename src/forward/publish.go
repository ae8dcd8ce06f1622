package forward

import (
	"context"
	"time"

	"devsonar/src/broker"
	"devsonar/src/contracts"
	"devsonar/src/logger"
)

// BrokerForwarder publishes each batch to the batches topic, keyed by batch id.
type BrokerForwarder struct {
	broker broker.Broker
}

func NewBrokerForwarder(brk broker.Broker) *BrokerForwarder {
	return &BrokerForwarder{broker: brk}
}

func (f *BrokerForwarder) Forward(ctx context.Context, reports []contracts.ErrorReport) error {
	batch := NewBatch(reports, time.Now())
	return broker.PublishJSON(ctx, f.broker, contracts.TopicBatches, batch.ID, batch)
}

// LogForwarder writes the prompt to the logger instead of sending it anywhere.
type LogForwarder struct {
	logger         logger.Logger
	maxStackLength int
}

func NewLogForwarder(log logger.Logger, maxStackLength int) *LogForwarder {
	return &LogForwarder{logger: log, maxStackLength: maxStackLength}
}

func (f *LogForwarder) Forward(ctx context.Context, reports []contracts.ErrorReport) error {
	f.logger.Info("[LogForwarder] === Prompt ===\n%s\n[LogForwarder] === End Prompt ===",
		BuildPrompt(reports, f.maxStackLength, time.Now()))
	return nil
}
