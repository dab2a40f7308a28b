package models

import "time"

// MaxInstructionChars bounds the user instruction of a generation request.
const MaxInstructionChars = 10000

// GenerationRequest is the input of a script generation.
// It is never persisted.
type GenerationRequest struct {
	Instruction     string   `json:"instruction" validate:"required,max=10000"`
	DocumentIDs     []string `json:"document_ids,omitempty" validate:"omitempty,dive,required"`
	DocumentText    string   `json:"document_text,omitempty"`
	TargetURL       string   `json:"target_url,omitempty" validate:"omitempty,url,startswith=http"`
	RequireDocument bool     `json:"require_document,omitempty"`
}

// HasContext reports whether the request carries any document context.
func (r GenerationRequest) HasContext() bool {
	return len(r.DocumentIDs) > 0 || r.DocumentText != ""
}

// ScriptPair holds the two generated automation scripts.
// Primary is Selenium, Alternate is Playwright; Raw is the unparsed model response.
type ScriptPair struct {
	Primary   string `json:"primary"`
	Alternate string `json:"alternate"`
	Raw       string `json:"raw,omitempty"`
}

// Complete reports whether both scripts were recovered.
func (p ScriptPair) Complete() bool {
	return p.Primary != "" && p.Alternate != ""
}

// Generation is a persisted generation outcome.
type Generation struct {
	ID          string     `json:"id"`
	Instruction string     `json:"instruction"`
	DocumentIDs []string   `json:"document_ids,omitempty"`
	TargetURL   string     `json:"target_url,omitempty"`
	Scripts     ScriptPair `json:"scripts"`
	Strategy    string     `json:"strategy"`
	Warnings    []string   `json:"warnings,omitempty"`
	Provider    string     `json:"provider,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
