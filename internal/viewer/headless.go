package viewer

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stlalpha/brepview/internal/display"
)

// RunHeadless acknowledges every published frame after writing a one-line
// summary of it to w. It returns when ctx is done or the worker shuts down.
func RunHeadless(ctx context.Context, c *display.Consumer, w io.Writer) error {
	p := message.NewPrinter(language.English)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return nil
		case <-c.Ready():
		}

		f, ok := c.Frame()
		if ok {
			_, err := p.Fprintf(w, "frame #%d from %s: entry %d/%d, %d bytes: %s\n",
				f.Seq, f.Remote, f.Index+1, f.Total, len(f.Payload), firstLine(payloadText(f.Payload), 60))
			if err != nil {
				c.MarkConsumed()
				return fmt.Errorf("viewer: writing frame summary: %w", err)
			}
		}
		c.MarkConsumed()
	}
}
