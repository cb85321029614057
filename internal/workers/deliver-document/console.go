package deliverdocument

import (
	"context"
	"fmt"
	"os"

	"github.com/google/renameio/v2"
)

// ConsoleDeliverer copies the document to a fixed local path for debugging.
type ConsoleDeliverer struct {
	sinkPath string
}

func NewConsoleDeliverer(sinkPath string) *ConsoleDeliverer {
	return &ConsoleDeliverer{sinkPath: sinkPath}
}

func (c *ConsoleDeliverer) Deliver(_ context.Context, req Request) error {
	data, err := os.ReadFile(req.Path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	// readers of the sink never see a half-written file
	if err := renameio.WriteFile(c.sinkPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", c.sinkPath, err)
	}
	return nil
}

// SinkPath is where documents land.
func (c *ConsoleDeliverer) SinkPath() string {
	return c.sinkPath
}
