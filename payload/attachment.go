package payload

// AttachmentKind discriminates the three attachment variants.
type AttachmentKind string

const (
	// AttachmentKindLocal identifies a file already present on local disk.
	AttachmentKindLocal AttachmentKind = "local"
	// AttachmentKindInMemory identifies raw bytes held in process memory.
	AttachmentKindInMemory AttachmentKind = "in_memory"
	// AttachmentKindRemote identifies content addressable by URL.
	AttachmentKindRemote AttachmentKind = "remote"
)

// Attachment is a reference to binary content carried alongside a message.
// The orchestrator never interprets attachments itself; CLI- or
// HTTP-backed agents materialize them as needed.
type Attachment struct {
	Kind AttachmentKind

	// Path is set when Kind == AttachmentKindLocal.
	Path string
	// Bytes is set when Kind == AttachmentKindInMemory.
	Bytes []byte
	// Name labels in-memory bytes for agents that need a filename hint.
	Name string
	// URL is set when Kind == AttachmentKindRemote.
	URL string
}

// LocalAttachment builds an Attachment referencing a local file path.
func LocalAttachment(path string) Attachment {
	return Attachment{Kind: AttachmentKindLocal, Path: path}
}

// InMemoryAttachment builds an Attachment carrying bytes directly.
func InMemoryAttachment(name string, data []byte) Attachment {
	return Attachment{Kind: AttachmentKindInMemory, Name: name, Bytes: data}
}

// RemoteAttachment builds an Attachment referencing a remote URL.
func RemoteAttachment(url string) Attachment {
	return Attachment{Kind: AttachmentKindRemote, URL: url}
}

// Describe renders a short placeholder string used when folding a payload
// containing attachments down to plain text.
func (a Attachment) Describe() string {
	switch a.Kind {
	case AttachmentKindLocal:
		return "[attachment: " + a.Path + "]"
	case AttachmentKindInMemory:
		if a.Name != "" {
			return "[attachment: " + a.Name + "]"
		}
		return "[attachment: in-memory]"
	case AttachmentKindRemote:
		return "[attachment: " + a.URL + "]"
	default:
		return "[attachment]"
	}
}
