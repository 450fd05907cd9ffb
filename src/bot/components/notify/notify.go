package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/zeroy-labs/govbot/src/bot/components/reconciler"
	"github.com/zeroy-labs/govbot/src/tally"
)

// Sender delivers one message to one recipient. Retry, if any, belongs to
// the transport behind it.
type Sender interface {
	Send(recipientID, text string) error
}

// Renderer turns events and proposals into deterministic message text.
// Upstream titles are sanitized; absent fields degrade to placeholders
// instead of failing the message.
type Renderer struct {
	sanitize *bluemonday.Policy
}

func NewRenderer() *Renderer {
	return &Renderer{sanitize: bluemonday.StrictPolicy()}
}

// Event renders a full notification message for one event.
func (r *Renderer) Event(ev reconciler.Event) string {
	var header string
	switch ev.Kind {
	case reconciler.EventStatusChanged:
		header = fmt.Sprintf("🔄 Status changed: %s ➜ %s", orUnknown(ev.OldStatus), orUnknown(ev.NewStatus))
	default:
		header = "🆕 New proposal"
	}
	return header + "\n\n" + r.Proposal(ev.Proposal, ev.Org.Slug)
}

// Proposal renders one proposal block, shared by notifications and the
// recent-proposals listing.
func (r *Renderer) Proposal(p tally.Proposal, slug string) string {
	title := strings.TrimSpace(r.sanitize.Sanitize(p.Title))
	if title == "" {
		title = "(untitled proposal)"
	}

	return fmt.Sprintf(
		"**%s**\nStatus: %s\nStart: %s\nEnd: %s\nLink: https://www.tally.xyz/gov/%s/proposal/%d",
		title, orUnknown(p.Status), formatTime(p.Start), formatTime(p.End), slug, p.ID,
	)
}

// Dispatcher fans one event out to every recipient. Delivery failures are
// isolated per recipient and never retried here.
type Dispatcher struct {
	sender   Sender
	renderer *Renderer
}

func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender, renderer: NewRenderer()}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev reconciler.Event) {
	text := d.renderer.Event(ev)
	for _, recipient := range ev.Recipients {
		if ctx.Err() != nil {
			return
		}
		if err := d.sender.Send(recipient, text); err != nil {
			log.Printf("notify: delivery of %s for proposal %d to %s failed: %v", ev.Kind, ev.Proposal.ID, recipient, err)
			continue
		}
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
