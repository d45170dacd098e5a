// Package web holds the small HTTP helpers shared by every Refind handler
// package: strict JSON decoding, the flat {"error": ...} response shape, and
// the bearer-token session gate.
package web
