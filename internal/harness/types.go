package harness

// TraceEvent records the outcome of one step. Chunks are named by their
// descriptor index.
type TraceEvent struct {
	Step      int    `json:"step"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	Present   int    `json:"present"`
	Required  int    `json:"required"`
	Retrieved []int  `json:"retrieved,omitempty"`
	Skipped   []int  `json:"skipped,omitempty"`
	Failed    []int  `json:"failed,omitempty"`
	Corrupt   []int  `json:"corrupt,omitempty"`
	Missing   []int  `json:"missing,omitempty"`
	RunID     string `json:"run_id,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
