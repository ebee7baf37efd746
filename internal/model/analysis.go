package model

import "time"

// AnalysisVersion is one immutable entry in a session's analysis history.
// The first version has no instructions and BasedOn == -1.
type AnalysisVersion struct {
	Index        int       `json:"index"`
	Text         string    `json:"text"`
	Instructions string    `json:"instructions,omitempty"`
	BasedOn      int       `json:"based_on"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsRefinement reports whether the version was produced by a refine request.
func (v AnalysisVersion) IsRefinement() bool {
	return v.BasedOn >= 0
}
