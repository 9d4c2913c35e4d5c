// Package respond centraliza a escrita de respostas JSON.
// Todo corpo de rejeição do gateway tem um campo "message" (e nada de stack trace).
package respond

import (
	"encoding/json"
	"net/http"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Message é o corpo mínimo de erro/aviso.
type Message struct {
	Message string `json:"message"`
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Message{Message: msg})
}
