// Package decoderapi is the contract a decoder plug-in's Go source is
// written against. It is the only package plug-in source imports;
// internal/vmbridge injects its symbols into the embedded yaegi
// interpreter so interpreted decoder code can "import" it like any
// other package.
package decoderapi

import "github.com/ClusterCockpit/decoderuntime/pkg/schema"

// Metadata mirrors the Decoder class attributes a plug-in exposes. A
// plug-in module exposes exactly one package-level `var Meta Metadata`.
type Metadata struct {
	APIVersion       int
	ID               string
	Name             string
	LongName         string
	Desc             string
	License          string
	Inputs           []string
	Outputs          []string
	Tags             []string
	Channels         []schema.ChannelDef
	OptionalChannels []schema.ChannelDef
	Options          []schema.OptionDef
	Annotations      []schema.AnnotationClass
	AnnotationRows   []schema.AnnotationRow
	Binary           []schema.BinaryClass
	InitialPins      []byte
}

// OutputType selects how the output router dispatches a put() call.
type OutputType int

const (
	OutputAnnotation OutputType = iota
	OutputProtocol
	OutputBinary
	OutputMetadata
)

// Sample is one (absolute_samplenum, per-channel pin vector) yielded by
// the logic sample view.
type Sample struct {
	Samplenum uint64
	Pins      []byte
}

// SampleIterator is the finite, non-restartable sequence an API-v1
// decoder pulls samples from directly.
type SampleIterator interface {
	// Next returns the next sample, or ok == false once the chunk is
	// exhausted.
	Next() (Sample, bool)
}

// TermType enumerates the per-channel predicate kinds a condition term
// can use.
type TermType int

const (
	High TermType = iota
	Low
	Rising
	Falling
	EitherEdge
	NoEdge
	Skip
)

// Term is one per-channel predicate. For Skip, Channel is unused and
// Count gives the number of samples to advance before matching.
type Term struct {
	Channel int
	Type    TermType
	Count   int
}

// TermSet is a conjunction (AND) of Terms; an empty TermSet always
// matches.
type TermSet []Term

// ConditionList is a disjunction (OR) of TermSets; a nil/empty list
// matches immediately.
type ConditionList []TermSet

// AnnotationPut is the payload shape put() requires for an Annotation
// output port: [ann_class_index, [string, ...]].
type AnnotationPut struct {
	Class int
	Texts []string
}

// BinaryPut is the payload shape put() requires for a Binary output
// port: [bin_class_index, bytes].
type BinaryPut struct {
	Class int
	Data  []byte
}

// MetadataPut is the payload shape put() requires for a Metadata
// output port.
type MetadataPut struct {
	Key   string
	Value schema.OptionValue
}

// Context is the per-call handle the runtime passes to plug-in code.
// It is the only way plug-in code observes or mutates runtime state,
// keeping the bridge's single-VM-lock invariant enforceable at one
// choke point.
type Context struct {
	// Options holds the instance's resolved option overrides, keyed by
	// declared option id.
	Options map[string]schema.OptionValue

	// Samplenum is the absolute sample number of the sample on which
	// the most recent Wait matched (API v2); the runtime sets it,
	// plug-in code only reads it. It is not updated for API-v1
	// decoders, which read sample numbers from the iterator.
	Samplenum uint64

	// Matched holds the per-term-set match_array from the most recent
	// Wait call, or nil before the first Wait (API v2 only).
	Matched []bool

	// Meta carries the session's global acquisition parameters.
	NumChannels int
	Unitsize    int
	Samplerate  uint64

	put      func(start, end uint64, outputID int, payload interface{}) error
	register func(outputType OutputType, protocolID string) int
	wait     func(conds ConditionList) (pins []byte, matched []bool, err error)
}

// NewContext is used only by internal/instance to construct a Context
// bound to one running instance; plug-in code never calls it.
func NewContext(
	put func(start, end uint64, outputID int, payload interface{}) error,
	register func(outputType OutputType, protocolID string) int,
	wait func(conds ConditionList) (pins []byte, matched []bool, err error),
) *Context {
	return &Context{
		Options:  map[string]schema.OptionValue{},
		put:      put,
		register: register,
		wait:     wait,
	}
}

// Put emits one output event.
func (c *Context) Put(start, end uint64, outputID int, payload interface{}) error {
	return c.put(start, end, outputID, payload)
}

// Register allocates a new output port, returning its dense integer id.
// Output-port ids are assigned in registration order and never reused.
func (c *Context) Register(outputType OutputType, protocolID string) int {
	return c.register(outputType, protocolID)
}

// Wait suspends an API-v2 decoder until conds matches, or blocks until
// more samples arrive.
func (c *Context) Wait(conds ConditionList) (matchedPins []byte, err error) {
	pins, matched, err := c.wait(conds)
	c.Matched = matched
	return pins, err
}

// Decoder is the interface every plug-in's instance type implements.
type Decoder interface {
	// Start is called once, after required channels are bound and
	// before the first Decode call.
	Start(ctx *Context) error
}

// DecoderV1 is implemented by API-version-1 (push) decoders.
type DecoderV1 interface {
	Decoder
	DecodeV1(ctx *Context, start, end uint64, data SampleIterator) error
}

// DecoderV2 is implemented by API-version-2 (pull, wait-based) decoders.
// DecodeV2 takes no sample arguments; it pulls through ctx.Wait.
type DecoderV2 interface {
	Decoder
	DecodeV2(ctx *Context) error
}

// DecoderProtocol is implemented by decoders stacked on a parent that
// emits protocol objects rather than raw logic samples: a stacked
// child's decode entrypoint receives its parent's opaque put() payload,
// not a sample iterator.
type DecoderProtocol interface {
	Decoder
	DecodeProtocol(ctx *Context, start, end uint64, obj *schema.ProtocolObject) error
}
