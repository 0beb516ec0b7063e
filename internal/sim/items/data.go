package items

import "strings"

// UseResult is the outcome of using one unit of a stack.
type UseResult int

const (
	UseConsume UseResult = iota
	UseNone
	UseFail
)

func (r UseResult) String() string {
	switch r {
	case UseConsume:
		return "CONSUME"
	case UseNone:
		return "NONE"
	case UseFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// ParseUseResult accepts the catalog spelling ("consume", "none", "fail").
func ParseUseResult(s string) (UseResult, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "CONSUME":
		return UseConsume, true
	case "NONE":
		return UseNone, true
	case "FAIL":
		return UseFail, true
	default:
		return UseFail, false
	}
}

// UseHandler implements a custom use behavior. It may change the stack's
// count or identity; the caller recomputes derived state afterwards.
type UseHandler func(s *Stack, actor any) UseResult

// UseBehavior is one of Consume, None, Fail or Custom(handler).
// The zero value is Consume.
type UseBehavior struct {
	result  UseResult
	handler UseHandler
}

func Always(r UseResult) UseBehavior { return UseBehavior{result: r} }

func Custom(h UseHandler) UseBehavior { return UseBehavior{handler: h} }

func (b UseBehavior) IsCustom() bool { return b.handler != nil }

func (b UseBehavior) apply(s *Stack, actor any) UseResult {
	if b.handler != nil {
		return b.handler(s, actor)
	}
	return b.result
}

const DefaultStackSize = 100

// Data is the static metadata shared by every stack of one item id.
type Data struct {
	StackSize   int
	DisplayName string
	Icon        string
	Use         UseBehavior

	// OnUnregister runs before the entry leaves the registry.
	OnUnregister func(id string)
}

func NewData(displayName string, stackSize int) *Data {
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	return &Data{StackSize: stackSize, DisplayName: displayName}
}

func placeholder() *Data {
	return &Data{Use: Always(UseFail)}
}
