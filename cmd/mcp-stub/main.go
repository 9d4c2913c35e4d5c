// Stub do upstream MCP para desenvolvimento local: responde tools/call com
// dados enlatados, sem auth de verdade.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	"mcd-dashboard/mcp"
)

func main() {
	addr := ":9090"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", handleToolCall)

	log.Printf("mcp stub listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

type toolCall struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

func handleToolCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var call toolCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil || call.Method != "tools/call" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	log.Printf("tools/call %s %v", call.Params.Name, call.Params.Arguments)

	var payload any
	switch call.Params.Name {
	case "my-coupons":
		payload = mcp.CouponList{
			Coupons: []mcp.Coupon{
				{ID: "c-1001", Name: "Batata média grátis", ExpiryDate: "2026-12-31", Status: "active"},
			},
			Total: 1,
			Page:  1,
		}
	case "available-coupons":
		payload = mcp.CouponList{
			Coupons: []mcp.Coupon{
				{ID: "c-2001", Name: "McFlurry 50% off", ExpiryDate: "2026-10-01", Status: "active"},
				{ID: "c-2002", Name: "Combo do dia", ExpiryDate: "2026-09-15", Status: "active"},
			},
			Total: 2,
			Page:  1,
		}
	case "campaign-calender":
		date, _ := call.Params.Arguments["specifiedDate"].(string)
		if date == "" {
			date = time.Now().Format("2006-01-02")
		}
		payload = mcp.CampaignList{
			Campaigns: []mcp.Campaign{
				{ID: "camp-1", Title: "Semana do drive-thru", StartDate: date, EndDate: date, IsSubscribed: false},
			},
			Date: date,
		}
	case "auto-bind-coupons":
		payload = mcp.AutoClaimResult{Success: true, Claimed: 2, Message: "claimed all available coupons"}
	case "now-time-info":
		now := time.Now()
		payload = mcp.TimeInfo{
			Timestamp: now.UnixMilli(),
			Formatted: now.Format(time.RFC3339),
			Year:      now.Year(),
			Month:     int(now.Month()),
			Day:       now.Day(),
		}
	default:
		http.Error(w, `{"code":404,"message":"unknown tool"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
