package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"stackcraft.ai/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "client name")
		interval = flag.Duration("interval", 500*time.Millisecond, "delay between ops")
		rounds   = flag.Int("rounds", 0, "script rounds to run (0 = until interrupted)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 64},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	msgs := make(chan []byte, 64)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msgs <- msg
		}
	}()

	var p *planner
	tick := time.NewTicker(*interval)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			p = handleMsg(logger, p, msg)
		case <-tick.C:
			if p == nil {
				continue
			}
			if *rounds > 0 && p.round >= *rounds {
				logger.Printf("done after %d rounds totals=%v", p.round, p.totals())
				return
			}
			if err := conn.WriteJSON(p.next()); err != nil {
				logger.Printf("send OP: %v", err)
				return
			}
		}
	}
}

func handleMsg(logger *log.Logger, p *planner, msg []byte) *planner {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return p
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return p
		}
		logger.Printf("WELCOME session=%s inventory=%s size=%d tables=%v", w.SessionID, w.InventoryID, w.Size, w.LootTables)
		return newPlanner(w)

	case protocol.TypeSlot:
		var s protocol.SlotMsg
		if err := json.Unmarshal(msg, &s); err != nil || p == nil {
			return p
		}
		p.observe(s)

	case protocol.TypeResult:
		var r protocol.ResultMsg
		if err := json.Unmarshal(msg, &r); err != nil {
			return p
		}
		if !r.OK {
			logger.Printf("%s %s failed: %s %s", r.ReqID, r.Op, r.Code, r.Message)
		}
	}
	return p
}

// planner cycles through a gather, craft and loot script and mirrors the
// slot contents it is told about.
type planner struct {
	inventory string
	slots     []protocol.ItemStack
	table     string

	step  int
	round int
	seq   int
}

var script = []protocol.OpMsg{
	{Op: protocol.OpAddItem, Item: "WOOD", Count: 2},
	{Op: protocol.OpCraft, Recipe: "planks"},
	{Op: protocol.OpCraft, Recipe: "planks"},
	{Op: protocol.OpCraft, Recipe: "sticks"},
	{Op: protocol.OpAddItem, Item: "STONE", Count: 3},
	{Op: protocol.OpCraftable},
	{Op: protocol.OpCraft, Recipe: "stone_pickaxe"},
	{Op: protocol.OpRoll},
}

func newPlanner(w protocol.WelcomeMsg) *planner {
	p := &planner{inventory: w.InventoryID, slots: append([]protocol.ItemStack(nil), w.Slots...)}
	if len(w.LootTables) > 0 {
		p.table = w.LootTables[0]
	}
	return p
}

func (p *planner) observe(s protocol.SlotMsg) {
	if s.InventoryID != p.inventory || s.Slot < 0 {
		return
	}
	for len(p.slots) <= s.Slot {
		p.slots = append(p.slots, protocol.ItemStack{})
	}
	p.slots[s.Slot] = s.Item
}

func (p *planner) next() protocol.OpMsg {
	op := script[p.step]
	p.step++
	if p.step == len(script) {
		p.step = 0
		p.round++
	}
	if op.Op == protocol.OpRoll {
		op.Table = p.table
	}
	p.seq++
	op.Type = protocol.TypeOp
	op.ProtocolVersion = protocol.Version
	op.ReqID = fmt.Sprintf("R%d", p.seq)
	return op
}

func (p *planner) totals() map[string]int {
	out := map[string]int{}
	for _, s := range p.slots {
		if s.ID != "" && s.Count > 0 {
			out[s.ID] += s.Count
		}
	}
	return out
}
