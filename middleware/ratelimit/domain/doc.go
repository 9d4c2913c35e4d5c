// Package domain define os contratos do rate limit (buckets, counter store,
// decisão, stats) sem nenhuma dependência de HTTP ou infraestrutura.
package domain
