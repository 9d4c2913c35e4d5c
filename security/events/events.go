// Package events emite eventos de segurança estruturados.
//
// Regra importante: eventos carregam apenas method + pathname. Query string,
// corpo e URL completa ficam de fora para não vazar tokens em log.
package events

import (
	"go.uber.org/zap"
)

type Logger struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{log: log.Named("security")}
}

func (l *Logger) event(typ string, extra []zap.Field, details ...zap.Field) {
	fields := append([]zap.Field{
		zap.String("type", typ),
		zap.Dict("details", details...),
	}, extra...)
	l.log.Warn("security_event", fields...)
}

// UnauthorizedAPIAccess registra acesso não autenticado a rota de API protegida.
func (l *Logger) UnauthorizedAPIAccess(requestID, method, pathname string) {
	l.event("unauthorized_api_access", reqID(requestID),
		zap.String("method", method),
		zap.String("pathname", pathname),
	)
}

// UnauthorizedPageAccess é o equivalente para rotas de página (superfície HTML futura).
func (l *Logger) UnauthorizedPageAccess(requestID, method, pathname string) {
	l.event("unauthorized_page_access", reqID(requestID),
		zap.String("method", method),
		zap.String("pathname", pathname),
	)
}

// BlockedOrigin registra preflight rejeitado pela allow-list.
func (l *Logger) BlockedOrigin(requestID, origin, method, pathname string) {
	l.event("blocked_origin", reqID(requestID),
		zap.String("method", method),
		zap.String("pathname", pathname),
		zap.String("origin", origin),
	)
}

// BackendUnavailable registra falha de dependência (ex: store de rate limit fora do ar).
// Sempre logado como erro no servidor, independente de fail-open/fail-closed.
func (l *Logger) BackendUnavailable(component string, err error) {
	l.log.Error("backend_unavailable",
		zap.String("component", component),
		zap.Error(err),
	)
}

func reqID(id string) []zap.Field {
	if id == "" {
		return nil
	}
	return []zap.Field{zap.String("request_id", id)}
}
