// Package infra traz as implementações concretas dos contratos de domain:
// counter stores (Redis compartilhado, memória para dev/teste), stats e
// semáforo de concorrência.
package infra
