// Package payload defines the value type passed to agents: an ordered list
// of speaker-attributed messages plus attachments and an execution-context
// timeline, grounded on the teacher's runtime/agent/model message/part
// shape but collapsed to the single concrete type this spec calls for.
package payload

import "strings"

// PartKind discriminates the two content-part variants a message may carry.
type PartKind string

const (
	// PartKindText identifies a plain text content part.
	PartKindText PartKind = "text"
	// PartKindAttachment identifies an attachment content part.
	PartKindAttachment PartKind = "attachment"
)

// Part is a single content block within a Message: either text or an
// attachment reference.
type Part struct {
	Kind       PartKind
	Text       string
	Attachment Attachment
}

// TextPart builds a text content part.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// AttachmentPart builds an attachment content part.
func AttachmentPart(a Attachment) Part {
	return Part{Kind: PartKindAttachment, Attachment: a}
}

// Message is a single entry in a Payload: a speaker plus its content parts.
type Message struct {
	Speaker Speaker
	Parts   []Part
}

// Payload is the value passed to agents: an ordered list of messages plus
// an ordered execution-context timeline. The orchestrator constructs
// payloads by value; agents never receive a mutable reference back into
// the context store.
type Payload struct {
	Messages []Message
	Timeline []TimelineEntry
}

// FromText builds a single-message payload with the given speaker and text.
func FromText(speaker Speaker, text string) Payload {
	return Payload{Messages: []Message{{Speaker: speaker, Parts: []Part{TextPart(text)}}}}
}

// Prepend inserts a new message at the front of the payload, so the most
// recently prepended message ends up first in the rendered text.
func (p Payload) Prepend(speaker Speaker, text string) Payload {
	out := Payload{
		Messages: make([]Message, 0, len(p.Messages)+1),
		Timeline: p.Timeline,
	}
	out.Messages = append(out.Messages, Message{Speaker: speaker, Parts: []Part{TextPart(text)}})
	out.Messages = append(out.Messages, p.Messages...)
	return out
}

// PrependSystem prepends a system message. Convenience wrapper used
// pervasively to stack instructions in front of the conversation so far.
func (p Payload) PrependSystem(text string) Payload {
	return p.Prepend(System(), text)
}

// AppendMessage appends a message to the payload.
func (p Payload) AppendMessage(speaker Speaker, text string) Payload {
	out := Payload{
		Messages: append(append([]Message{}, p.Messages...), Message{Speaker: speaker, Parts: []Part{TextPart(text)}}),
		Timeline: p.Timeline,
	}
	return out
}

// AttachToLast appends an attachment part to the most recently added
// message. If the payload has no messages yet, a new user message carrying
// only the attachment is created.
func (p Payload) AttachToLast(a Attachment) Payload {
	if len(p.Messages) == 0 {
		return Payload{
			Messages: []Message{{Speaker: User("", ""), Parts: []Part{AttachmentPart(a)}}},
			Timeline: p.Timeline,
		}
	}
	out := Payload{
		Messages: append([]Message{}, p.Messages...),
		Timeline: p.Timeline,
	}
	last := out.Messages[len(out.Messages)-1]
	last.Parts = append(append([]Part{}, last.Parts...), AttachmentPart(a))
	out.Messages[len(out.Messages)-1] = last
	return out
}

// WithTimelineEntry appends an execution-context timeline entry, used by
// context detection to stamp a payload before dispatch.
func (p Payload) WithTimelineEntry(entry TimelineEntry) Payload {
	out := Payload{
		Messages: p.Messages,
		Timeline: append(append([]TimelineEntry{}, p.Timeline...), entry),
	}
	return out
}

// ToText folds the payload down to a single plain-text string for agents
// that only accept text. Each non-system message is rendered as
// "speaker: content" and a system message as its content alone,
// messages are joined with newlines, and attachments are rendered as
// bracketed placeholders inline with the text parts of their message.
func (p Payload) ToText() string {
	var b strings.Builder
	for i, m := range p.Messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		if m.Speaker.Kind != SpeakerKindSystem {
			b.WriteString(m.Speaker.String())
			b.WriteString(": ")
		}
		for j, part := range m.Parts {
			if j > 0 {
				b.WriteByte(' ')
			}
			switch part.Kind {
			case PartKindText:
				b.WriteString(part.Text)
			case PartKindAttachment:
				b.WriteString(part.Attachment.Describe())
			}
		}
	}
	return b.String()
}

// LatestDetected returns the most recently merged DetectedContext across
// the payload's timeline, or ok=false when detection never ran.
func (p Payload) LatestDetected() (DetectedContext, bool) {
	var (
		acc DetectedContext
		has bool
	)
	for _, entry := range p.Timeline {
		if entry.Detected == nil {
			continue
		}
		if !has {
			acc = *entry.Detected
			has = true
			continue
		}
		acc = acc.Merge(*entry.Detected)
	}
	return acc, has
}
