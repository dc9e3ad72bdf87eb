package kafka_test

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowstore/pkg/channels/kafka"
	"github.com/stretchr/testify/assert"
)

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"localhost:9092", "kafka:9092"}, kafka.ParseBrokers("localhost:9092, kafka:9092,"))
	assert.Empty(t, kafka.ParseBrokers(""))
}

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	_, _, err := kafka.CreateChannel(watermill.NopLogger{}, nil, "flowstore")
	assert.ErrorIs(t, err, kafka.ErrNoBrokers)
}
