// Package eventstreamutils builds an eventstream.Publisher from provider settings.
package eventstreamutils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/eventstream"
	"github.com/papercomputeco/sleeves/pkg/eventstream/kafka"
	"github.com/papercomputeco/sleeves/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	// ProviderType is "nop" or "kafka". Empty means "nop".
	ProviderType string

	// Brokers is a comma separated broker list.
	Brokers string
	Topic   string

	Logger *zap.Logger
}

func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(kafka.Config{
			Brokers: strings.Split(o.Brokers, ","),
			Topic:   o.Topic,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", o.ProviderType)
	}
}
