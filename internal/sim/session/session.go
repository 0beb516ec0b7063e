package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"stackcraft.ai/internal/protocol"
	"stackcraft.ai/internal/sim/catalogs"
	"stackcraft.ai/internal/sim/economy"
	"stackcraft.ai/internal/sim/inventory"
	"stackcraft.ai/internal/sim/items"
)

type Config struct {
	InventorySize int
	HandEnabled   bool
	InboxSize     int
	TuningDigest  string
}

type client struct {
	id   string
	name string
	inv  *inventory.Inventory
	hand *inventory.Hand
	out  chan []byte

	unsubscribe func()
	dropped     int
}

// Session is the single owner of every inventory it hands out.
// All state must be accessed only from the Run goroutine.
type Session struct {
	cfg  Config
	eco  *economy.Economy
	cats *catalogs.Catalogs
	log  *log.Logger

	inbox chan OpEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}
	once  sync.Once

	clients map[string]*client
	seq     uint64

	changeLogger ChangeLogger
	auditLogger  AuditLogger

	now func() time.Time

	clientCount atomic.Int64
	opsTotal    atomic.Uint64
	opsFailed   atomic.Uint64
	droppedMsgs atomic.Uint64
}

type Metrics struct {
	Clients     int64
	OpsTotal    uint64
	OpsFailed   uint64
	Dropped     uint64
	QueueDepths QueueDepths
}

type QueueDepths struct {
	Inbox int
	Join  int
	Leave int
}

// Metrics is safe to call from any goroutine.
func (s *Session) Metrics() Metrics {
	return Metrics{
		Clients:   s.clientCount.Load(),
		OpsTotal:  s.opsTotal.Load(),
		OpsFailed: s.opsFailed.Load(),
		Dropped:   s.droppedMsgs.Load(),
		QueueDepths: QueueDepths{
			Inbox: len(s.inbox),
			Join:  len(s.join),
			Leave: len(s.leave),
		},
	}
}

func New(cfg Config, eco *economy.Economy, cats *catalogs.Catalogs, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.InventorySize <= 0 {
		cfg.InventorySize = 27
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	if cats == nil {
		cats = &catalogs.Catalogs{}
	}
	return &Session{
		cfg:     cfg,
		eco:     eco,
		cats:    cats,
		log:     logger,
		inbox:   make(chan OpEnvelope, cfg.InboxSize),
		join:    make(chan JoinRequest, 16),
		leave:   make(chan string, 16),
		stop:    make(chan struct{}),
		clients: map[string]*client{},
		now:     time.Now,
	}
}

func (s *Session) SetChangeLogger(l ChangeLogger) { s.changeLogger = l }
func (s *Session) SetAuditLogger(l AuditLogger)   { s.auditLogger = l }

func (s *Session) Inbox() chan<- OpEnvelope { return s.inbox }
func (s *Session) Join() chan<- JoinRequest { return s.join }
func (s *Session) Leave() chan<- string     { return s.leave }

// Stop makes Run return. It is safe to call more than once.
func (s *Session) Stop() { s.once.Do(func() { close(s.stop) }) }

func (s *Session) Run(ctx context.Context) error {
	defer s.dropAll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case req := <-s.join:
			s.handleJoin(req)
		case id := <-s.leave:
			s.handleLeave(id)
		case env := <-s.inbox:
			s.handleOp(env)
		}
	}
}

func (s *Session) handleJoin(req JoinRequest) {
	c := &client{
		id:   "C" + uuid.NewString()[:8],
		name: req.Name,
		inv:  s.eco.NewInventory(s.cfg.InventorySize),
		out:  req.Out,
	}
	if s.cfg.HandEnabled {
		c.hand = inventory.NewHand(func(st items.Stack) {
			s.send(c, protocol.HandMsg{
				Type:            protocol.TypeHand,
				ProtocolVersion: protocol.Version,
				Item:            wireStack(st),
			})
		})
	}
	c.unsubscribe = c.inv.OnChange(func(ev inventory.ChangeEvent) {
		s.onChange(c, ev)
	})
	s.clients[c.id] = c
	s.clientCount.Store(int64(len(s.clients)))
	s.log.Printf("session: join %s (%s) inventory=%s", c.id, c.name, c.inv.ID())

	if req.Resp != nil {
		req.Resp <- JoinResponse{Welcome: s.welcome(c)}
	}
}

func (s *Session) welcome(c *client) protocol.WelcomeMsg {
	slots := make([]protocol.ItemStack, 0, c.inv.Size())
	for _, st := range c.inv.Items() {
		slots = append(slots, wireStack(st))
	}
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       c.id,
		InventoryID:     c.inv.ID(),
		Size:            c.inv.Size(),
		Hand:            c.hand != nil,
		Slots:           slots,
		Catalogs: protocol.CatalogDigests{
			Items:         protocol.DigestRef{Digest: s.cats.Items.Digest, Count: len(s.cats.Items.Palette)},
			RecipesDigest: s.cats.Recipes.Digest,
			LootDigest:    s.cats.Loot.Digest,
			TuningDigest:  s.cfg.TuningDigest,
		},
		LootTables: s.eco.TableNames(),
	}
}

func (s *Session) handleLeave(id string) {
	c, ok := s.clients[id]
	if !ok {
		return
	}
	c.unsubscribe()
	delete(s.clients, id)
	s.clientCount.Store(int64(len(s.clients)))
	if c.dropped > 0 {
		s.log.Printf("session: leave %s (dropped %d messages)", id, c.dropped)
		return
	}
	s.log.Printf("session: leave %s", id)
}

func (s *Session) dropAll() {
	for id := range s.clients {
		s.handleLeave(id)
	}
}

func (s *Session) onChange(c *client, ev inventory.ChangeEvent) {
	s.send(c, protocol.SlotMsg{
		Type:            protocol.TypeSlot,
		ProtocolVersion: protocol.Version,
		InventoryID:     ev.Inventory,
		Slot:            ev.Slot,
		Item:            wireStack(ev.Item),
	})
	if s.changeLogger == nil {
		return
	}
	s.seq++
	entry := ChangeEntry{
		Seq:         s.seq,
		TimeMs:      s.now().UnixMilli(),
		ClientID:    c.id,
		InventoryID: ev.Inventory,
		Size:        c.inv.Size(),
		Slot:        ev.Slot,
		Item:        ev.Item.ID(),
		Count:       ev.Item.Count(),
		Totals:      c.inv.Totals(),
	}
	if err := s.changeLogger.WriteChange(entry); err != nil {
		s.log.Printf("session: change log: %v", err)
	}
}

func (s *Session) audit(c *client, action, ref string, st items.Stack, ok bool, reason string) {
	if s.auditLogger == nil {
		return
	}
	s.seq++
	entry := AuditEntry{
		Seq:         s.seq,
		TimeMs:      s.now().UnixMilli(),
		ClientID:    c.id,
		InventoryID: c.inv.ID(),
		Action:      action,
		Ref:         ref,
		Item:        st.ID(),
		Count:       st.Count(),
		OK:          ok,
		Reason:      reason,
	}
	if err := s.auditLogger.WriteAudit(entry); err != nil {
		s.log.Printf("session: audit log: %v", err)
	}
}

// send never blocks the loop; a full client queue drops the message.
func (s *Session) send(c *client, v any) {
	if c.out == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("session: marshal: %v", err)
		return
	}
	select {
	case c.out <- b:
	default:
		c.dropped++
		s.droppedMsgs.Add(1)
	}
}

func wireStack(st items.Stack) protocol.ItemStack {
	return protocol.ItemStack{ID: st.ID(), Count: st.Count()}
}
