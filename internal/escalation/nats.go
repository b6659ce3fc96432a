package escalation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn used for escalations.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type NATSNotifier struct {
	pub     Publisher
	subject string
}

func NewNATSNotifier(pub Publisher, subject string) *NATSNotifier {
	return &NATSNotifier{pub: pub, subject: subject}
}

// ConnectNATS dials the broker used to fan escalations out to other systems.
func ConnectNATS(url, clientName string) (*nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name(clientName), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("error connecting to nats: %w", err)
	}
	return nc, nil
}

func (*NATSNotifier) Name() string { return "nats" }

func (n *NATSNotifier) Notify(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("error encoding escalation: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("error publishing escalation: %w", err)
	}
	return nil
}
