package queue

import (
	"context"
	"fmt"

	"github.com/bitleak/lmstfy/client"
)

// publisher is the subset of the lmstfy SDK the queue uses.
type publisher interface {
	Publish(queue string, data []byte, ttl uint32, tries uint16, delay uint32) (string, error)
}

// Client publishes jobs to lmstfy.
type Client struct {
	cli   publisher
	ttl   uint32
	tries uint16
}

// NewClient creates an lmstfy client for the configured namespace.
func NewClient(cfg Config) *Client {
	return newClient(client.NewLmstfyClient(cfg.Host, cfg.Port, cfg.Namespace, cfg.Token), cfg)
}

func newClient(p publisher, cfg Config) *Client {
	tries := cfg.Tries
	if tries == 0 {
		tries = 1
	}
	return &Client{cli: p, ttl: cfg.TTLSeconds, tries: tries}
}

// Publish enqueues data on queue and returns the job id. The SDK call is not
// context aware, so ctx only bounds how long the caller waits for it.
func (c *Client) Publish(ctx context.Context, queue string, data []byte) (string, error) {
	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := c.cli.Publish(queue, data, c.ttl, c.tries, 0)
		done <- result{id: id, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("lmstfy publish failed: %w", r.err)
		}
		return r.id, nil
	}
}
