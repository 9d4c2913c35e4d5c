// Package ratelimit fornece adapters HTTP (net/http) para rate limit por
// bucket e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny com fail-open/fail-closed,
//     acquire/timeout) sem net/http
//   - infra: implementações concretas (contador Redis, contador em memória,
//     semáforo), detalhes de infraestrutura
//   - ratelimit (este pacote): middlewares HTTP + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. O pipeline resolve a identidade e extrai a chave (user:<id> ou ip:<addr>)
//  2. Chama a camada application para o check-and-increment do bucket da rota
//  3. Se bloqueado, responde 429 com X-RateLimit-* e Retry-After;
//     se o store estiver fora do ar em produção, responde 503
//  4. Se permitido, decora a resposta com X-RateLimit-* e chama o próximo handler
package ratelimit
