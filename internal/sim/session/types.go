package session

import "stackcraft.ai/internal/protocol"

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

type OpEnvelope struct {
	ClientID string
	Op       protocol.OpMsg
}

// ChangeLogger receives one entry per slot change, in the order changes
// happen.
type ChangeLogger interface {
	WriteChange(entry ChangeEntry) error
}

// AuditLogger receives one entry per craft, roll or use.
type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type ChangeEntry struct {
	Seq         uint64         `json:"seq"`
	TimeMs      int64          `json:"time_ms"`
	ClientID    string         `json:"client_id"`
	InventoryID string         `json:"inventory_id"`
	Size        int            `json:"size"`
	Slot        int            `json:"slot"`
	Item        string         `json:"item"`
	Count       int            `json:"count"`
	Totals      map[string]int `json:"totals"`
}

type AuditEntry struct {
	Seq         uint64 `json:"seq"`
	TimeMs      int64  `json:"time_ms"`
	ClientID    string `json:"client_id"`
	InventoryID string `json:"inventory_id"`
	Action      string `json:"action"` // "CRAFT","ROLL","USE"
	Ref         string `json:"ref,omitempty"`
	Item        string `json:"item"`
	Count       int    `json:"count"`
	OK          bool   `json:"ok"`
	Reason      string `json:"reason,omitempty"`
}
