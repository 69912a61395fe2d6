package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/campscout/internal/events"
)

func TestNewPublisherRequiresClient(t *testing.T) {
	pub := events.NewPublisher(nil, nil)
	assert.Nil(t, pub)
}

func TestNilPublisherIsNoOp(t *testing.T) {
	var pub *events.Publisher

	err := pub.Publish(context.Background(), events.Event{EventType: events.JobCompleted})
	assert.NoError(t, err)

	// Must not panic either.
	pub.PublishAsync(events.Event{EventType: events.JobFailed})
}
