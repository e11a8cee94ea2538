package payload

// SpeakerKind identifies which class of participant produced a message.
type SpeakerKind string

const (
	// SpeakerKindSystem identifies the system prompt speaker.
	SpeakerKindSystem SpeakerKind = "system"
	// SpeakerKindUser identifies a human or caller-side participant.
	SpeakerKindUser SpeakerKind = "user"
	// SpeakerKindAgent identifies an agent participant.
	SpeakerKindAgent SpeakerKind = "agent"
)

// Speaker identifies the originator of a message, preserving full
// attribution (name and role) so save/resume can reconstruct a coherent
// history. System speakers carry neither name nor role.
type Speaker struct {
	Kind SpeakerKind
	Name string
	Role string
}

// System returns the singleton system speaker.
func System() Speaker {
	return Speaker{Kind: SpeakerKindSystem}
}

// User returns a user speaker with the given name and role.
func User(name, role string) Speaker {
	return Speaker{Kind: SpeakerKindUser, Name: name, Role: role}
}

// AgentSpeaker returns an agent speaker with the given name and role.
func AgentSpeaker(name, role string) Speaker {
	return Speaker{Kind: SpeakerKindAgent, Name: name, Role: role}
}

// String renders a short human-readable label for the speaker, used when
// folding a payload to plain text.
func (s Speaker) String() string {
	switch s.Kind {
	case SpeakerKindSystem:
		return "system"
	case SpeakerKindUser:
		if s.Name != "" {
			return s.Name
		}
		return "user"
	case SpeakerKindAgent:
		if s.Name != "" {
			return s.Name
		}
		return "agent"
	default:
		return string(s.Kind)
	}
}
