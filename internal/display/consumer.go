package display

// Consumer is the rendering side's view of a State. On every Ready signal it
// should read Frame, render it and call MarkConsumed.
type Consumer struct {
	s *State
}

// Ready receives a value each time a new frame has been published. Signals
// coalesce: one receive may cover several publishes, but only one frame is
// ever in flight so this does not happen in practice.
func (c *Consumer) Ready() <-chan struct{} { return c.s.ready }

// Done is closed when the worker has shut down.
func (c *Consumer) Done() <-chan struct{} { return c.s.done }

// Frame returns the last published frame. The payload must not be modified.
func (c *Consumer) Frame() (Frame, bool) { return c.s.Published() }

func (c *Consumer) Mode() Mode { return c.s.Mode() }

func (c *Consumer) Connections() []ConnStatus { return c.s.Connections() }

// MarkConsumed acknowledges the frame returned by Frame.
func (c *Consumer) MarkConsumed() bool { return c.send(Command{Kind: CmdConsumed}) }

// MovePrevious asks for the previous history entry of the current connection.
// Ignored by the worker in auto mode.
func (c *Consumer) MovePrevious() bool { return c.send(Command{Kind: CmdMovePrevious}) }

// MoveNext asks for the next history entry of the current connection.
func (c *Consumer) MoveNext() bool { return c.send(Command{Kind: CmdMoveNext}) }

// SetMode switches between auto and manual draw modes.
func (c *Consumer) SetMode(auto bool) bool {
	return c.send(Command{Kind: CmdSetMode, Auto: auto})
}

// send delivers cmd unless the worker is gone. It reports whether the command
// was queued.
func (c *Consumer) send(cmd Command) bool {
	select {
	case <-c.s.done:
		return false
	default:
	}
	select {
	case c.s.commands <- cmd:
		return true
	case <-c.s.done:
		return false
	}
}
