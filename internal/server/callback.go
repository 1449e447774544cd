package server

import "rmndr/internal/bot"

// Webhook envelope as delivered by the messaging platform. One POST may
// batch events for many users; each messaging item is processed as an
// independent event.
type callback struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID        string      `json:"id"`
	Time      int64       `json:"time"`
	Messaging []messaging `json:"messaging"`
}

type messaging struct {
	Sender    *user     `json:"sender"`
	Recipient *user     `json:"recipient"`
	Timestamp int64     `json:"timestamp"`
	Message   *message  `json:"message"`
	Postback  *postback `json:"postback"`
}

type user struct {
	ID string `json:"id"`
}

type message struct {
	Text       string      `json:"text"`
	QuickReply *quickReply `json:"quick_reply"`
}

type quickReply struct {
	Payload string `json:"payload"`
}

type postback struct {
	Payload string `json:"payload"`
}

// events flattens the envelope into engine events, dropping items with
// no sender.
func (c *callback) events() []bot.Event {
	var out []bot.Event
	for _, en := range c.Entry {
		for _, m := range en.Messaging {
			if m.Sender == nil || m.Sender.ID == "" {
				continue
			}
			ev := bot.Event{
				SenderID:  m.Sender.ID,
				Timestamp: m.Timestamp,
			}
			if m.Postback != nil {
				ev.PostbackPayload = m.Postback.Payload
			}
			if m.Message != nil {
				ev.Text = m.Message.Text
				if m.Message.QuickReply != nil {
					ev.HasQuickReply = true
					ev.QuickReplyPayload = m.Message.QuickReply.Payload
				}
			}
			out = append(out, ev)
		}
	}
	return out
}
