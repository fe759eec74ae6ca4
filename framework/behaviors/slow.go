package behaviors

import (
	"context"
	"time"

	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/logging"
	"github.com/km-arc/go-bootstrap/framework/pipeline"
)

// DefaultSlowThreshold is used when no threshold is configured.
const DefaultSlowThreshold = 500 * time.Millisecond

// SlowThreshold is registered in the container to tune SlowRequest.
type SlowThreshold time.Duration

// SlowRequest warns about requests whose chain took longer than a threshold.
type SlowRequest struct {
	log       *logging.NamedLogger
	threshold time.Duration
	request   string
	now       func() time.Time
}

func NewSlowRequest(reg *logging.Registry, threshold time.Duration, pair container.ServiceKey) *SlowRequest {
	if threshold <= 0 {
		threshold = DefaultSlowThreshold
	}
	return &SlowRequest{
		log:       reg.GetOrCreate("SlowRequestBehavior" + typeArgs(pair)),
		threshold: threshold,
		request:   pairRequestName(pair),
		now:       time.Now,
	}
}

func (b *SlowRequest) Handle(ctx context.Context, request any, next pipeline.Next) (any, error) {
	start := b.now()
	response, err := next(ctx)
	if elapsed := b.now().Sub(start); elapsed > b.threshold {
		b.log.WarnFn(ctx, func() string {
			return "Slow request " + b.request + ": took " + elapsed.String() + ", threshold " + b.threshold.String()
		})
	}
	return response, err
}

func SlowRequestFactory(a container.Activation) (pipeline.Behavior, error) {
	reg, err := registryFrom(a)
	if err != nil {
		return nil, err
	}
	threshold, err := container.Resolve[SlowThreshold](a)
	if err != nil && !isNotRegistered(err, container.Key[SlowThreshold]()) {
		return nil, err
	}
	return NewSlowRequest(reg, time.Duration(threshold), a.Requested()), nil
}
