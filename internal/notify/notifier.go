// Package notify reports crawl completions to Telegram and answers status
// queries from the configured chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"crawldash/internal/domain"
	"crawldash/internal/records"
)

// queueSize bounds the messages waiting to be sent.
const queueSize = 32

// Sender delivers one message. *tgbot.Bot satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

// Transition is a record that just finished.
type Transition struct {
	Record domain.URLRecord
	From   domain.Status
}

// Transitions lists records of next that moved into done or error since prev.
// Records that are new in next are not reported.
func Transitions(prev, next []domain.URLRecord) []Transition {
	before := make(map[int64]domain.Status, len(prev))
	for _, r := range prev {
		before[r.ID] = r.Status
	}
	var out []Transition
	for _, r := range next {
		from, seen := before[r.ID]
		if !seen || from == r.Status || !r.Status.Finished() {
			continue
		}
		out = append(out, Transition{Record: r, From: from})
	}
	return out
}

// Message renders a transition for the chat.
func (t Transition) Message() string {
	icon := "✅"
	if t.Record.Status == domain.StatusError {
		icon = "❌"
	}
	msg := fmt.Sprintf("%s #%d %s: %s", icon, t.Record.ID, t.Record.Status, t.Record.URL)
	if title := t.Record.TitleOrEmpty(); title != "" {
		msg += "\n" + title
	}
	return msg
}

// Notifier watches accepted snapshots and queues a message per finished crawl.
type Notifier struct {
	sender Sender
	chatID int64
	log    logrus.FieldLogger
	queue  chan string

	mu     sync.Mutex
	last   []domain.URLRecord
	primed bool
}

// NewNotifier creates a notifier that posts to chatID.
func NewNotifier(sender Sender, chatID int64, logger logrus.FieldLogger) *Notifier {
	return &Notifier{
		sender: sender,
		chatID: chatID,
		log:    logger.WithField("component", "notifier"),
		queue:  make(chan string, queueSize),
	}
}

// Observe is a records.Listener. The first snapshot only sets the baseline.
// It never blocks; messages beyond the queue capacity are dropped.
func (n *Notifier) Observe(snap records.Snapshot) {
	n.mu.Lock()
	prev, primed := n.last, n.primed
	n.last, n.primed = snap.Records, true
	n.mu.Unlock()

	if !primed {
		return
	}
	for _, t := range Transitions(prev, snap.Records) {
		select {
		case n.queue <- t.Message():
		default:
			n.log.WithField("id", t.Record.ID).Warn("Notification queue full, dropping message")
		}
	}
}

// Run sends queued messages until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	n.log.Info("Notifier started")
	for {
		select {
		case <-ctx.Done():
			n.log.Info("Notifier stopped")
			return
		case text := <-n.queue:
			_, err := n.sender.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: n.chatID, Text: text})
			if err != nil {
				n.log.WithError(err).Error("Failed to send notification")
			}
		}
	}
}

// Summary describes a snapshot in one line per status.
func Summary(recs []domain.URLRecord) string {
	counts := make(map[domain.Status]int, len(domain.Statuses))
	for _, r := range recs {
		counts[r.Status]++
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d URLs", len(recs))
	for _, s := range domain.Statuses {
		fmt.Fprintf(&b, "\n%s: %d", s, counts[s])
	}
	return b.String()
}
