package session

import (
	"errors"
	"fmt"

	"stackcraft.ai/internal/protocol"
	"stackcraft.ai/internal/sim/crafting"
	"stackcraft.ai/internal/sim/economy"
	"stackcraft.ai/internal/sim/inventory"
	"stackcraft.ai/internal/sim/items"
	"stackcraft.ai/internal/sim/loot"
)

type opError struct {
	code string
	msg  string
}

func (e *opError) Error() string { return e.code + ": " + e.msg }

func fail(code, format string, args ...any) *opError {
	return &opError{code: code, msg: fmt.Sprintf(format, args...)}
}

func (s *Session) handleOp(env OpEnvelope) {
	c, ok := s.clients[env.ClientID]
	if !ok {
		return
	}
	res := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		ReqID:           env.Op.ReqID,
		Op:              env.Op.Op,
	}
	s.opsTotal.Add(1)
	if err := s.apply(c, env.Op, &res); err != nil {
		s.opsFailed.Add(1)
		res.OK = false
		res.Code = err.code
		res.Message = err.msg
	} else {
		res.OK = true
	}
	s.send(c, res)
}

func (s *Session) apply(c *client, op protocol.OpMsg, res *protocol.ResultMsg) *opError {
	switch op.Op {
	case protocol.OpAddItem:
		st, err := s.stackFor(op.Item, op.Count)
		if err != nil {
			return err
		}
		res.Rest = wirePtr(c.inv.AddItem(st))

	case protocol.OpAddSlot:
		i, err := slotIndex(c.inv, op)
		if err != nil {
			return err
		}
		st, err := s.stackFor(op.Item, op.Count)
		if err != nil {
			return err
		}
		res.Rest = wirePtr(c.inv.AddSlot(i, st))

	case protocol.OpTakeItem:
		if op.Item == "" || op.Count <= 0 {
			return fail(protocol.ErrBadRequest, "take needs item and positive count")
		}
		got := c.inv.TakeItem(op.Item, op.Count)
		res.Item = wirePtr(got)
		if got.Count() < op.Count {
			return fail(protocol.ErrNoResource, "took %d of %d %s", got.Count(), op.Count, op.Item)
		}

	case protocol.OpTakeSlot:
		i, err := slotIndex(c.inv, op)
		if err != nil {
			return err
		}
		res.Item = wirePtr(c.inv.TakeSlot(i))

	case protocol.OpSwap:
		if c.hand == nil {
			return fail(protocol.ErrBadRequest, "hand disabled")
		}
		i, err := slotIndex(c.inv, op)
		if err != nil {
			return err
		}
		inventory.Exchange(c.hand, c.inv.Slot(i))
		res.Item = wirePtr(c.hand.Peek())

	case protocol.OpUse:
		i, err := slotIndex(c.inv, op)
		if err != nil {
			return err
		}
		before := c.inv.Peek(i)
		r := c.inv.UseSlot(i, c.id)
		res.Use = r.String()
		s.audit(c, "USE", before.ID(), c.inv.Peek(i), r != items.UseFail, "")
		if r == items.UseFail {
			return fail(protocol.ErrInvalidTarget, "slot %d cannot be used", i)
		}

	case protocol.OpCraft:
		rest, err := s.eco.Craft(c.inv, op.Recipe)
		if err != nil {
			s.audit(c, "CRAFT", op.Recipe, items.Stack{}, false, err.Error())
			return craftError(err)
		}
		r, _ := s.eco.Recipes.Get(op.Recipe)
		out, _ := r.Output()
		res.Item = wirePtr(out)
		res.Rest = wirePtr(rest)
		s.audit(c, "CRAFT", op.Recipe, out, true, "")

	case protocol.OpCraftable:
		names := []string{}
		for _, r := range s.eco.Recipes.AllCraftable(c.inv) {
			names = append(names, r.ID)
		}
		res.Recipes = names

	case protocol.OpRoll:
		rolled, rest, err := s.eco.Roll(c.inv, op.Table)
		if err != nil {
			s.audit(c, "ROLL", op.Table, items.Stack{}, false, err.Error())
			return rollError(err)
		}
		res.Item = wirePtr(rolled)
		res.Rest = wirePtr(rest)
		s.audit(c, "ROLL", op.Table, rolled, true, "")

	case protocol.OpResize:
		if op.Count <= 0 {
			return fail(protocol.ErrBadRequest, "size must be positive")
		}
		c.inv.SetSize(op.Count)

	default:
		return fail(protocol.ErrBadRequest, "unknown op %q", op.Op)
	}
	return nil
}

// stackFor builds a stack of n units. The count is not clamped to the stack
// size; inventories split it on insert.
func (s *Session) stackFor(id string, n int) (items.Stack, *opError) {
	if id == "" || n <= 0 {
		return items.Stack{}, fail(protocol.ErrBadRequest, "need item and positive count")
	}
	if !s.eco.Items.Has(id) {
		return items.Stack{}, fail(protocol.ErrUnknownItem, "unknown item %q", id)
	}
	return s.eco.Items.NewStack(id, 1).WithCount(n), nil
}

func slotIndex(inv *inventory.Inventory, op protocol.OpMsg) (int, *opError) {
	if op.Slot == nil {
		return 0, fail(protocol.ErrBadRequest, "missing slot")
	}
	i := *op.Slot
	if i < 0 || i >= inv.Size() {
		return 0, fail(protocol.ErrInvalidTarget, "slot %d out of range", i)
	}
	return i, nil
}

func craftError(err error) *opError {
	switch {
	case errors.Is(err, economy.ErrUnknownRecipe):
		return fail(protocol.ErrInvalidTarget, "%v", err)
	case errors.Is(err, crafting.ErrMissingInputs):
		return fail(protocol.ErrNoResource, "%v", err)
	default:
		return fail(protocol.ErrInternal, "%v", err)
	}
}

func rollError(err error) *opError {
	switch {
	case errors.Is(err, economy.ErrUnknownTable):
		return fail(protocol.ErrInvalidTarget, "%v", err)
	case errors.Is(err, loot.ErrNoRoot), errors.Is(err, loot.ErrNoEntries), errors.Is(err, loot.ErrNoEntry):
		return fail(protocol.ErrNoResource, "%v", err)
	default:
		return fail(protocol.ErrInternal, "%v", err)
	}
}

func wirePtr(st items.Stack) *protocol.ItemStack {
	w := wireStack(st)
	return &w
}
