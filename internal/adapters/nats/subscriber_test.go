package natsadapter_test

import (
	"testing"

	natsadapter "github.com/aldalur/plantmap/internal/adapters/nats"
	"github.com/aldalur/plantmap/internal/core/ports"
)

func TestSubscriberSatisfiesEventSubscriberPort(t *testing.T) {
	var s interface{} = (*natsadapter.Subscriber)(nil)
	if _, ok := s.(ports.EventSubscriber); !ok {
		t.Fatal("Subscriber does not satisfy ports.EventSubscriber")
	}
}
