// Package sms is the boundary to the SMS/OTP delivery provider (cm.com).
//
// CM covers both verification strategies: the OTP API generates, sends and
// later verifies a code on the provider side (delegated verification), and
// the text message API delivers a message whose code was generated and hashed
// locally. Every call is bounded by the client timeout and never retried;
// failures surface as *ProviderError so callers can offer a resend instead.
package sms
