package kconfig

// Result is the outcome of Generate. It is either Generated or Fallback.
type Result interface {
	// Text is the kernel config fragment
	Text() string
	// Label is recorded as the job's ai_model
	Label() string
	isResult()
}

// Generated holds a fragment produced by the completion service
type Generated struct {
	Model   string
	Content string
}

func (g Generated) Text() string  { return g.Content }
func (g Generated) Label() string { return g.Model }
func (Generated) isResult()       {}

// Fallback holds a rule based fragment. Reason is empty when no completer
// was configured and holds the failure otherwise.
type Fallback struct {
	Reason  string
	Content string
}

func (f Fallback) Text() string { return f.Content }

func (f Fallback) Label() string {
	if f.Reason == "" {
		return "fallback"
	}
	return "fallback-error: " + f.Reason
}

func (Fallback) isResult() {}
