package engine

// Surface is the interactive output of a host: a chat buffer, a terminal.
// Headless requests never touch it.
type Surface interface {
	// Status shows a transient notice such as "Running tool: grep".
	Status(msg string)
	// Token appends one streamed token of the answer.
	Token(token string)
	// Error renders a terminal error for the current turn.
	Error(err error)
	// Finish closes the current turn so the next one can be appended.
	// fresh is true after a reset.
	Finish(fresh bool)
}

// NopSurface discards everything.
type NopSurface struct{}

func (NopSurface) Status(string) {}
func (NopSurface) Token(string)  {}
func (NopSurface) Error(error)   {}
func (NopSurface) Finish(bool)   {}
