package ir

// RunRecord captures the outcome of one provisioning run.
type RunRecord struct {
	ID             string        `pkl:"id"`
	StartedAt      string        `pkl:"startedAt"`
	FinishedAt     string        `pkl:"finishedAt"`
	Arch           string        `pkl:"arch"`
	GPU            string        `pkl:"gpu"`
	PackageVersion string        `pkl:"packageVersion"`
	UnitPath       string        `pkl:"unitPath"`
	Aborted        bool          `pkl:"aborted"`
	Results        []*StepResult `pkl:"results"`
}

// Warnings returns the results that ended in WarnContinue.
func (r *RunRecord) Warnings() []*StepResult {
	var out []*StepResult
	for _, res := range r.Results {
		if res.Outcome == WarnContinue {
			out = append(out, res)
		}
	}
	return out
}
