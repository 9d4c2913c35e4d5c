// Package application implementa os casos de uso do rate limit (decisão
// allow/deny com fail-open/fail-closed, acquire de concorrência) sem net/http.
package application
