// Package ingest moves error reports across a broker: runners on other machines publish
// the reports their classifiers emit, and the relay's Agent feeds them into its buffer.
package ingest

import (
	"context"
	"fmt"

	"devsonar/src/broker"
	"devsonar/src/contracts"
	"devsonar/src/logger"
)

// GroupID is the consumer group the relay joins on the reports topic.
const GroupID = "devsonar-relay"

// Adder accepts reports. *buffer.Buffer satisfies it.
type Adder interface {
	Add(report contracts.ErrorReport)
}

// Agent consumes reports from the broker and hands them to an Adder.
type Agent struct {
	broker broker.Broker
	target Adder
	logger logger.Logger
}

// NewAgent creates a new ingest agent.
func NewAgent(brk broker.Broker, target Adder, log logger.Logger) *Agent {
	return &Agent{
		broker: brk,
		target: target,
		logger: log,
	}
}

// Run subscribes to the reports topic and processes messages until ctx ends or the
// subscription closes.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("[IngestAgent] Starting...")

	msgChan, err := a.broker.Subscribe(ctx, contracts.TopicReports, GroupID)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", contracts.TopicReports, err)
	}

	a.logger.Info("[IngestAgent] Listening for reports on '%s' topic...", contracts.TopicReports)

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				a.logger.Info("[IngestAgent] Message channel closed, shutting down")
				return nil
			}

			if err := a.processReport(msg); err != nil {
				a.logger.Warn("[IngestAgent] Skipping message at offset %d: %v", msg.Offset, err)
			}

		case <-ctx.Done():
			a.logger.Info("[IngestAgent] Context cancelled, shutting down")
			return ctx.Err()
		}
	}
}

func (a *Agent) processReport(msg broker.Message) error {
	var report contracts.ErrorReport
	if err := broker.Decode(msg, &report); err != nil {
		return err
	}
	if err := report.Validate(); err != nil {
		return err
	}

	a.logger.Debug("[IngestAgent] Received report: %s (source: %s)", report.Message, report.Source)
	a.target.Add(report)
	return nil
}

// Publisher sends reports to the broker, keyed by source so one stream stays on one partition.
type Publisher struct {
	broker broker.Broker
	logger logger.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(brk broker.Broker, log logger.Logger) *Publisher {
	return &Publisher{broker: brk, logger: log}
}

// Publish sends one report.
func (p *Publisher) Publish(ctx context.Context, report contracts.ErrorReport) error {
	return broker.PublishJSON(ctx, p.broker, contracts.TopicReports, report.Source, report)
}

// Sink returns a classifier sink that publishes each report, logging failures.
func (p *Publisher) Sink(ctx context.Context) func(contracts.ErrorReport) {
	return func(report contracts.ErrorReport) {
		if err := p.Publish(ctx, report); err != nil {
			p.logger.Error("[IngestPublisher] Failed to publish report: %v", err)
		}
	}
}
