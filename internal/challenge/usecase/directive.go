package usecase

import "time"

// Kind tells the pipeline what to do with a Directive.
type Kind string

const (
	KindRedirect Kind = "redirect"
	KindRender   Kind = "render"
	KindResume   Kind = "resume"
)

// Step names a pipeline-facing operation.
type Step string

const (
	StepSendCode     Step = "send-code"
	StepEnterCode    Step = "enter-code"
	StepValidateCode Step = "validate-code"
	StepPromptResend Step = "prompt-resend"
)

// Directive is the instruction returned to the pipeline after each operation.
type Directive struct {
	Kind      Kind
	Step      Step
	PendingID string

	// render only
	View string
	Data any

	// resume only
	ResumeToken   string
	PipelineState string
}

// EnterCodeView is the data for the code entry page.
type EnterCodeView struct {
	MaskedRecipient string
	CodeLength      int
	Invalid         bool
	ValidUntil      time.Time
}

// PromptResendView is the data for the resend prompt page.
type PromptResendView struct {
	Message string
}

func redirect(step Step, pendingID string) *Directive {
	return &Directive{Kind: KindRedirect, Step: step, PendingID: pendingID}
}

func render(step Step, pendingID string, data any) *Directive {
	return &Directive{Kind: KindRender, Step: step, PendingID: pendingID, View: string(step), Data: data}
}
