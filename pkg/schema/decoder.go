package schema

// APIVersion selects the push (iterator) or pull (wait-based) execution
// model a decoder uses.
type APIVersion int

const (
	APIv1 APIVersion = 1
	APIv2 APIVersion = 2
)

// ChannelDef is one required or optional channel declared by a decoder,
// in the stable load-order index that doubles as the instance
// channel-map key.
type ChannelDef struct {
	ID   string
	Name string
	Desc string
}

// OptionDef is one decoder option with its typed default and, optionally,
// an enumerated set of legal values.
type OptionDef struct {
	ID      string
	Desc    string
	Default OptionValue
	Values  []OptionValue
}

// AnnotationClass is one entry of a decoder's ordered annotation classes.
type AnnotationClass struct {
	Short string
	Long  string
}

// AnnotationRow groups annotation classes for display purposes; not used
// by the core routing logic but carried through from the plug-in
// contract since host front-ends rely on it.
type AnnotationRow struct {
	ID         string
	Name       string
	AnnIndices []int
}

// BinaryClass is one entry of a decoder's ordered binary-output classes.
type BinaryClass struct {
	ID   string
	Desc string
}

// Decoder is the immutable registry entry for one loaded decoder
// plug-in.
type Decoder struct {
	ID               string
	Name             string
	LongName         string
	Description      string
	License          string
	Inputs           []string
	Outputs          []string
	Tags             []string
	Channels         []ChannelDef
	OptionalChannels []ChannelDef
	Options          []OptionDef
	Annotations      []AnnotationClass
	AnnotationRows   []AnnotationRow
	Binary           []BinaryClass
	APIVersion       APIVersion

	// InitialPins holds the decoder's declared initial pin state, one
	// byte per required+optional channel index; nil means "all zero".
	InitialPins []byte

	// ModuleName is the name decoder_load was called with; decoder_get
	// and decoder_unload key off ID, but ModuleName is kept for
	// diagnostics and for idempotent-reload bookkeeping.
	ModuleName string
}

// NumChannels is the dense channel-map size: required channels first,
// then optional channels.
func (d *Decoder) NumChannels() int {
	return len(d.Channels) + len(d.OptionalChannels)
}

// ChannelIndex returns the declared index of channel id (required
// channels first), or -1 if id names neither a required nor an
// optional channel.
func (d *Decoder) ChannelIndex(id string) int {
	for i, c := range d.Channels {
		if c.ID == id {
			return i
		}
	}
	base := len(d.Channels)
	for i, c := range d.OptionalChannels {
		if c.ID == id {
			return base + i
		}
	}
	return -1
}

// IsOptionalChannel reports whether the declared channel at idx is one
// of the decoder's optional channels (vs. required).
func (d *Decoder) IsOptionalChannel(idx int) bool {
	return idx >= len(d.Channels)
}

// OptionByID looks up a declared option by id.
func (d *Decoder) OptionByID(id string) (OptionDef, bool) {
	for _, o := range d.Options {
		if o.ID == id {
			return o, true
		}
	}
	return OptionDef{}, false
}
