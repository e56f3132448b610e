// Package gochannel provides an in-memory pub/sub for development and tests.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Config tunes the in-memory pub/sub.
type Config struct {
	BufferSize int64
	// BlockUntilAck makes Publish wait for the subscriber to ack; useful for deterministic tests.
	BlockUntilAck bool
}

// CreateChannel returns one GoChannel serving as both publisher and subscriber.
func CreateChannel(config Config, logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel) {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            config.BufferSize,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: config.BlockUntilAck,
		},
		logger,
	)

	return pubSub, pubSub
}
