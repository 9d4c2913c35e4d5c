package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"mcd-dashboard/mcp"
	"mcd-dashboard/respond"
)

type upstreamErrorBody struct {
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// writeError é o mapeamento único de erro → resposta. Falha tipada do
// upstream repassa status e detalhes; qualquer outra coisa vira 500 genérico
// (logado, nunca exposto no corpo).
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var me *mcp.Error
	if errors.As(err, &me) {
		respond.JSON(w, me.Status, upstreamErrorBody{Message: me.Message, Details: me.Details})
		return
	}

	h.log.Error("unexpected upstream error", zap.Error(err))
	respond.Error(w, http.StatusInternalServerError, "Unexpected MCP API error")
}
