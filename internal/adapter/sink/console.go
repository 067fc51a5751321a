package sink

import (
	"context"
	"io"
	"sync"

	"github.com/guillermoBallester/querytap/internal/core/port"
)

// Console writes the formatted line of each record to w, one per line.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Write(_ context.Context, rec port.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, rec.Line+"\n")
	return err
}
