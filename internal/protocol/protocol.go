package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeOp      = "OP"
	TypeResult  = "RESULT"
	TypeSlot    = "SLOT"
	TypeHand    = "HAND"
)

// Operation names carried by OP messages.
const (
	OpAddItem   = "ADD_ITEM"
	OpAddSlot   = "ADD_SLOT"
	OpTakeItem  = "TAKE_ITEM"
	OpTakeSlot  = "TAKE_SLOT"
	OpSwap      = "SWAP"
	OpUse       = "USE"
	OpCraft     = "CRAFT"
	OpCraftable = "CRAFTABLE"
	OpRoll      = "ROLL"
	OpResize    = "RESIZE"
)

var knownOps = map[string]struct{}{
	OpAddItem:   {},
	OpAddSlot:   {},
	OpTakeItem:  {},
	OpTakeSlot:  {},
	OpSwap:      {},
	OpUse:       {},
	OpCraft:     {},
	OpCraftable: {},
	OpRoll:      {},
	OpResize:    {},
}

func IsKnownOp(op string) bool {
	_, ok := knownOps[op]
	return ok
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
