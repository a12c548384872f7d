package main

import (
	"context"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// gcpPublisher narrows *gcppubsub.Publisher to the publisher interface.
type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func wrapPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{p: p}
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}
