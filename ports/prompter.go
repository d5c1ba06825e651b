package ports

// PrompterPort shows an instruction to the participant. It is fire-and-forget:
// the session does not wait for acknowledgment.
type PrompterPort interface {
	Prompt(message string)
}
