package clips

// Logical names the engine prints to.
const (
	Stdout   = "stdout"
	WDisplay = "wdisplay"
	WWarning = "wwarning"
	WError   = "werror"
	WTrace   = "wtrace"
	WDialog  = "wdialog"
	WPrompt  = "wprompt"
	T        = "t"
)

// Instance is an engine-owned object record.
type Instance interface {
	// Name is the instance name without brackets.
	Name() string
	// Class is the defclass name.
	Class() string
}

// Args gives a native function access to its call arguments.
type Args interface {
	// Count is the number of arguments.
	Count() int
	// At returns argument i, 1-based. Out of range reads as Void.
	At(i int) Value
}

// ArgList is a ready-evaluated argument list.
type ArgList []Value

// Count implements Args.
func (a ArgList) Count() int { return len(a) }

// At implements Args.
func (a ArgList) At(i int) Value {
	if i < 1 || i > len(a) || a[i-1] == nil {
		return Void{}
	}
	return a[i-1]
}

// Function is a native routine callable from rule bodies. It always
// returns a value; failures read as FALSE.
type Function func(args Args) Value

// Router receives text the engine prints.
type Router interface {
	// Query reports whether the router handles a logical name.
	Query(logicalName string) bool
	// Print writes one chunk of text. Chunks are not line aligned.
	Print(logicalName, text string)
}

// SlotReader reads a slot directly, bypassing message handlers.
type SlotReader interface {
	DirectGetSlot(inst Instance, slot string) (Value, error)
}

// Environment is the engine API. Its methods mirror the C-level entry
// points and are treated as fixed.
type Environment interface {
	Allocator
	SlotReader

	Build(construct string) error
	Load(path string) error
	// Run fires up to limit rules (negative means no limit) and returns
	// how many fired.
	Run(limit int64) int64
	Reset() error
	Clear() error
	Eval(expr string) (Value, error)
	AssertString(fact string) error

	MakeInstance(spec string) (Instance, error)
	FindInstance(name string) (Instance, bool)
	// DeleteInstance removes an instance directly.
	DeleteInstance(inst Instance) error
	// UnmakeInstance removes an instance by sending it the delete message.
	UnmakeInstance(inst Instance) error
	DirectPutSlot(inst Instance, slot string, v Value) error
	ClassSlots(class string, inherit bool) (*Multifield, error)
	DefclassList() *Multifield

	DefineFunction(name string, fn Function) error
	AddRouter(name string, priority int, r Router) error
}
