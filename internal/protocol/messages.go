package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	InventoryID     string         `json:"inventory_id"`
	Size            int            `json:"size"`
	Hand            bool           `json:"hand"`
	Slots           []ItemStack    `json:"slots"`
	Catalogs        CatalogDigests `json:"catalogs"`
	LootTables      []string       `json:"loot_tables,omitempty"`
}

type CatalogDigests struct {
	Items         DigestRef `json:"items"`
	RecipesDigest string    `json:"recipes_digest"`
	LootDigest    string    `json:"loot_digest"`
	TuningDigest  string    `json:"tuning_digest,omitempty"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// ItemStack is a stack on the wire. Empty stacks use id "empty".
type ItemStack struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// OP (client -> server): one inventory operation.
type OpMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Op              string `json:"op"`
	Slot            *int   `json:"slot,omitempty"`
	Item            string `json:"item,omitempty"`
	Count           int    `json:"count,omitempty"`
	Recipe          string `json:"recipe,omitempty"`
	Table           string `json:"table,omitempty"`
}

// RESULT (server -> client): the outcome of one OP.
type ResultMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	ReqID           string     `json:"req_id,omitempty"`
	Op              string     `json:"op"`
	OK              bool       `json:"ok"`
	Code            string     `json:"code,omitempty"`
	Message         string     `json:"message,omitempty"`
	Item            *ItemStack `json:"item,omitempty"`
	Rest            *ItemStack `json:"rest,omitempty"`
	Use             string     `json:"use,omitempty"`
	Recipes         []string   `json:"recipes,omitempty"`
}

// SLOT (server -> client): a slot changed.
type SlotMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	InventoryID     string    `json:"inventory_id"`
	Slot            int       `json:"slot"`
	Item            ItemStack `json:"item"`
}

// HAND (server -> client): the held stack changed.
type HandMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Item            ItemStack `json:"item"`
}
