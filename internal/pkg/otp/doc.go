// Package otp generates numeric one-time codes.
//
// Codes come from crypto/rand and are uniformly distributed over
// [0, 10^length), left-padded with zeros, so "004321" is a valid six digit
// code.
package otp
