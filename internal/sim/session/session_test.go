package session

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"stackcraft.ai/internal/protocol"
	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/economy"
)

type memChanges struct{ entries []ChangeEntry }

func (m *memChanges) WriteChange(e ChangeEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type memAudit struct{ entries []AuditEntry }

func (m *memAudit) WriteAudit(e AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

type harness struct {
	t    *testing.T
	s    *Session
	id   string
	out  chan []byte
	done chan error
	seq  int
}

func start(t *testing.T, cfg Config) (*harness, *memChanges, *memAudit) {
	t.Helper()
	quiet := log.New(io.Discard, "", 0)
	cats, err := catalogs.Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	eco := economy.New(quiet)
	if err := eco.Install(cats, 3); err != nil {
		t.Fatalf("install: %v", err)
	}
	s := New(cfg, eco, cats, quiet)
	changes, audits := &memChanges{}, &memAudit{}
	s.SetChangeLogger(changes)
	s.SetAuditLogger(audits)

	h := &harness{t: t, s: s, out: make(chan []byte, 1024), done: make(chan error, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { h.done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})

	resp := make(chan JoinResponse, 1)
	s.Join() <- JoinRequest{Name: "tester", Out: h.out, Resp: resp}
	select {
	case r := <-resp:
		h.id = r.Welcome.SessionID
		if r.Welcome.Size != cfg.InventorySize || len(r.Welcome.Slots) != cfg.InventorySize {
			t.Fatalf("welcome: %+v", r.Welcome)
		}
		if r.Welcome.Catalogs.Items.Digest == "" || len(r.Welcome.LootTables) == 0 {
			t.Fatalf("welcome catalogs: %+v", r.Welcome.Catalogs)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("join timed out")
	}
	return h, changes, audits
}

// do sends op and returns its RESULT plus the SLOT messages seen before it.
func (h *harness) do(op protocol.OpMsg) (protocol.ResultMsg, []protocol.SlotMsg) {
	h.t.Helper()
	h.seq++
	op.Type = protocol.TypeOp
	op.ProtocolVersion = protocol.Version
	op.ReqID = "r" + string(rune('0'+h.seq%10))
	h.s.Inbox() <- OpEnvelope{ClientID: h.id, Op: op}

	var slots []protocol.SlotMsg
	timeout := time.After(2 * time.Second)
	for {
		select {
		case b := <-h.out:
			base, err := protocol.DecodeBase(b)
			if err != nil {
				h.t.Fatalf("decode: %v", err)
			}
			switch base.Type {
			case protocol.TypeSlot:
				var m protocol.SlotMsg
				_ = json.Unmarshal(b, &m)
				slots = append(slots, m)
			case protocol.TypeResult:
				var m protocol.ResultMsg
				_ = json.Unmarshal(b, &m)
				if m.ReqID != op.ReqID {
					h.t.Fatalf("result for %q, want %q", m.ReqID, op.ReqID)
				}
				return m, slots
			}
		case <-timeout:
			h.t.Fatalf("op %s timed out", op.Op)
		}
	}
}

func slot(i int) *int { return &i }

func TestSession_AddCraftRoll(t *testing.T) {
	h, changes, audits := start(t, Config{InventorySize: 9, HandEnabled: true})

	res, slots := h.do(protocol.OpMsg{Op: protocol.OpAddItem, Item: "WOOD", Count: 2})
	if !res.OK || res.Rest == nil || res.Rest.Count != 0 || len(slots) != 1 {
		t.Fatalf("add: %+v slots=%v", res, slots)
	}
	h.do(protocol.OpMsg{Op: protocol.OpAddItem, Item: "STONE", Count: 3})

	res, _ = h.do(protocol.OpMsg{Op: protocol.OpCraftable})
	if len(res.Recipes) != 1 || res.Recipes[0] != "planks" {
		t.Fatalf("craftable: %v", res.Recipes)
	}

	res, _ = h.do(protocol.OpMsg{Op: protocol.OpCraft, Recipe: "planks"})
	if !res.OK || res.Item.ID != "PLANK" || res.Item.Count != 4 {
		t.Fatalf("craft: %+v", res)
	}
	res, _ = h.do(protocol.OpMsg{Op: protocol.OpCraft, Recipe: "stone_pickaxe"})
	if res.OK || res.Code != protocol.ErrNoResource {
		t.Fatalf("pickaxe without sticks: %+v", res)
	}
	res, _ = h.do(protocol.OpMsg{Op: protocol.OpCraft, Recipe: "anvil"})
	if res.Code != protocol.ErrInvalidTarget {
		t.Fatalf("unknown recipe: %+v", res)
	}

	res, _ = h.do(protocol.OpMsg{Op: protocol.OpRoll, Table: "chest"})
	if !res.OK || res.Item == nil || res.Item.Count == 0 {
		t.Fatalf("roll: %+v", res)
	}

	if len(changes.entries) == 0 {
		t.Fatalf("no change entries")
	}
	last := changes.entries[len(changes.entries)-1]
	if last.InventoryID == "" || last.Totals == nil {
		t.Fatalf("change entry: %+v", last)
	}
	for i := 1; i < len(changes.entries); i++ {
		if changes.entries[i].Seq <= changes.entries[i-1].Seq {
			t.Fatalf("sequence must increase")
		}
	}
	if len(audits.entries) != 4 {
		t.Fatalf("audits: %d (%+v)", len(audits.entries), audits.entries)
	}
}

func TestSession_Errors(t *testing.T) {
	h, _, _ := start(t, Config{InventorySize: 3})

	cases := []struct {
		op   protocol.OpMsg
		code string
	}{
		{protocol.OpMsg{Op: protocol.OpAddItem, Item: "NOPE", Count: 1}, protocol.ErrUnknownItem},
		{protocol.OpMsg{Op: protocol.OpAddItem, Item: "WOOD"}, protocol.ErrBadRequest},
		{protocol.OpMsg{Op: protocol.OpTakeSlot}, protocol.ErrBadRequest},
		{protocol.OpMsg{Op: protocol.OpTakeSlot, Slot: slot(7)}, protocol.ErrInvalidTarget},
		{protocol.OpMsg{Op: protocol.OpSwap, Slot: slot(0)}, protocol.ErrBadRequest},
		{protocol.OpMsg{Op: protocol.OpUse, Slot: slot(0)}, protocol.ErrInvalidTarget},
		{protocol.OpMsg{Op: protocol.OpTakeItem, Item: "WOOD", Count: 1}, protocol.ErrNoResource},
		{protocol.OpMsg{Op: protocol.OpRoll, Table: "nope"}, protocol.ErrInvalidTarget},
		{protocol.OpMsg{Op: "DANCE"}, protocol.ErrBadRequest},
	}
	for _, tc := range cases {
		res, _ := h.do(tc.op)
		if res.OK || res.Code != tc.code {
			t.Fatalf("%s: got ok=%v code=%s want %s", tc.op.Op, res.OK, res.Code, tc.code)
		}
	}
}

func TestSession_HandAndUse(t *testing.T) {
	h, _, audits := start(t, Config{InventorySize: 3, HandEnabled: true})

	h.do(protocol.OpMsg{Op: protocol.OpAddSlot, Slot: slot(1), Item: "BREAD", Count: 2})
	res, _ := h.do(protocol.OpMsg{Op: protocol.OpUse, Slot: slot(1)})
	if !res.OK || res.Use != "CONSUME" {
		t.Fatalf("use bread: %+v", res)
	}

	// Pick the remaining bread up, then drop it into slot 2.
	res, slots := h.do(protocol.OpMsg{Op: protocol.OpSwap, Slot: slot(1)})
	if res.Item.ID != "BREAD" || res.Item.Count != 1 || len(slots) != 1 || slots[0].Item.ID != "empty" {
		t.Fatalf("pick up: %+v %v", res, slots)
	}
	res, slots = h.do(protocol.OpMsg{Op: protocol.OpSwap, Slot: slot(2)})
	if res.Item.ID != "empty" || len(slots) != 1 || slots[0].Slot != 2 {
		t.Fatalf("drop: %+v %v", res, slots)
	}

	res, _ = h.do(protocol.OpMsg{Op: protocol.OpTakeItem, Item: "BREAD", Count: 1})
	if !res.OK || res.Item.Count != 1 {
		t.Fatalf("take: %+v", res)
	}
	res, _ = h.do(protocol.OpMsg{Op: protocol.OpResize, Count: 5})
	if !res.OK {
		t.Fatalf("resize: %+v", res)
	}
	if len(audits.entries) != 1 || audits.entries[0].Action != "USE" {
		t.Fatalf("audits: %+v", audits.entries)
	}
}

func TestSession_StopAndLeave(t *testing.T) {
	h, _, _ := start(t, Config{InventorySize: 1})
	h.s.Leave() <- h.id
	h.s.Leave() <- "unknown"
	h.s.Inbox() <- OpEnvelope{ClientID: h.id, Op: protocol.OpMsg{Op: protocol.OpCraftable}}
	h.s.Stop()
	h.s.Stop()
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		h.done <- nil
	case <-time.After(2 * time.Second):
		t.Fatalf("stop timed out")
	}
}

func TestSession_Metrics(t *testing.T) {
	h, _, _ := start(t, Config{InventorySize: 3})

	h.do(protocol.OpMsg{Op: protocol.OpAddItem, Item: "WOOD", Count: 1})
	h.do(protocol.OpMsg{Op: protocol.OpCraft, Recipe: "nope"})

	m := h.s.Metrics()
	if m.Clients != 1 || m.OpsTotal != 2 || m.OpsFailed != 1 {
		t.Fatalf("metrics: %+v", m)
	}
}
