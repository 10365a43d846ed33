// Package validator provides a small validation abstraction for request,
// settings and dependency structs.
//
// Beyond the go-playground built-ins it registers the rules the challenge
// flow relies on:
//
//	digits        string made only of ASCII 0-9 (empty passes; pair with required)
//	codetemplate  message template containing the {code} placeholder
package validator
