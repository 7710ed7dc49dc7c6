package extdata

import (
	"io"
	"sort"

	"github.com/pierrec/lz4/v3"
	"github.com/tinylib/msgp/msgp"

	"github.com/schmidtdse/josh/cmn"
	"github.com/schmidtdse/josh/entity"
	"github.com/schmidtdse/josh/value"
)

// attributeFromValue flattens a Value into its wire Attribute. Entity
// references and distributions are exported as their string/decimal
// summary respectively, since the wire record is a reference transport
// format rather than the full value algebra (§6).
func attributeFromValue(name string, v value.Value) Attribute {
	switch v.Kind() {
	case value.KindInt64:
		return Attribute{Name: name, Kind: "int64", I: v.Int64()}
	case value.KindBool:
		b := int64(0)
		if v.Bool() {
			b = 1
		}
		return Attribute{Name: name, Kind: "bool", I: b, B: v.Bool()}
	case value.KindString:
		return Attribute{Name: name, Kind: "string", S: v.String()}
	case value.KindEntityRef:
		return Attribute{Name: name, Kind: "string", S: v.EntityRef()}
	case value.KindDistribution:
		mean, _ := v.Distribution().Mean()
		return Attribute{Name: name, Kind: "decimal", F: mean}
	default:
		f, _ := v.AsFloat64()
		return Attribute{Name: name, Kind: "decimal", F: f}
	}
}

// ExportSink is the writer-facing interface (§6): write, flush, close.
// Target selection (csv, in-memory map) lives outside the core; the core
// only ever talks to this interface.
type ExportSink interface {
	Write(snapshot *entity.FrozenEntity, step int64) error
	Flush() error
	Close() error
}

// Record is the wire-level flattening of a FrozenEntity (§6): sorted
// attributes, plus position.x, position.y, and step. Every attribute of
// the snapshot is exported under its own name; attributes are not
// filtered by an "export." prefix and no prefix is stripped or added.
// Kept deliberately simple
// (scalar payload only) since it is the reference sink's transport
// format, not the in-core Value representation.
type Record struct {
	Replicate  string
	Step       int64
	EntityID   string
	TypeName   string
	PositionX  float64
	PositionY  float64
	Attributes []Attribute // sorted by Name
}

// Attribute is one exported scalar; Kind selects which payload field is
// meaningful.
type Attribute struct {
	Name string
	Kind string // "int64" | "decimal" | "bool" | "string"
	I    int64
	F    float64
	B    bool
	S    string
}

// ToRecord flattens a frozen snapshot into its wire record, using
// current[] where present and falling back to prior[] otherwise
// (mirrors the resolver's own prior-fallback rule so a snapshot taken
// mid-migration never loses a value it could still report).
func ToRecord(fe *entity.FrozenEntity) *Record {
	r := &Record{
		Replicate: fe.Replicate,
		Step:      fe.Step,
		EntityID:  fe.ID,
		TypeName:  fe.TypeName,
	}
	if fe.Geometry != nil {
		r.PositionX = fe.Geometry.CenterX
		r.PositionY = fe.Geometry.CenterY
	}
	for i, name := range fe.Names {
		if fe.CurrentOK[i] {
			r.Attributes = append(r.Attributes, attributeFromValue(name, fe.Current[i]))
		} else if fe.PriorOK[i] {
			r.Attributes = append(r.Attributes, attributeFromValue(name, fe.Prior[i]))
		}
	}
	sort.Slice(r.Attributes, func(i, j int) bool { return r.Attributes[i].Name < r.Attributes[j].Name })
	return r
}

// FileExportSink writes one msgp-encoded Record per call to an
// underlying file, optionally lz4-compressed (§6's export interface).
// Marshal/Unmarshal are hand-written against msgp.Writer/msgp.Reader —
// no go generate step runs in this repo — following the wire shape
// tinylib/msgp's generated code uses elsewhere in the pack (dsort's
// shard_gen.go): a map header followed by string keys and typed values.
type FileExportSink struct {
	f        io.WriteCloser
	w        *msgp.Writer
	compress bool
	lzw      *lz4.Writer
}

// NewFileExportSink wraps the already-open f; when compress is true,
// records are framed through an lz4.Writer before the msgp stream.
func NewFileExportSink(f io.WriteCloser, compress bool) *FileExportSink {
	s := &FileExportSink{f: f, compress: compress}
	var underlying io.Writer = f
	if compress {
		s.lzw = lz4.NewWriter(f)
		underlying = s.lzw
	}
	s.w = msgp.NewWriter(underlying)
	return s
}

func (s *FileExportSink) Write(snapshot *entity.FrozenEntity, step int64) error {
	r := ToRecord(snapshot)
	if err := r.EncodeMsg(s.w); err != nil {
		return cmn.Wrap(cmn.KindIoError, err, "encode export record for entity %s", r.EntityID)
	}
	return nil
}

func (s *FileExportSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return cmn.Wrap(cmn.KindIoError, err, "flush export sink")
	}
	if s.lzw != nil {
		if err := s.lzw.Flush(); err != nil {
			return cmn.Wrap(cmn.KindIoError, err, "flush lz4 frame")
		}
	}
	return nil
}

func (s *FileExportSink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if s.lzw != nil {
		if err := s.lzw.Close(); err != nil {
			return cmn.Wrap(cmn.KindIoError, err, "close lz4 frame")
		}
	}
	return cmn.Wrap(cmn.KindIoError, s.f.Close(), "close export file")
}

// EncodeMsg hand-writes Record's msgp wire form: a 6-field map header
// followed by the attribute list as a msgp array of 5-field maps.
func (r *Record) EncodeMsg(en *msgp.Writer) error {
	if err := en.WriteMapHeader(6); err != nil {
		return err
	}
	fields := []struct {
		key string
		wr  func() error
	}{
		{"replicate", func() error { return en.WriteString(r.Replicate) }},
		{"step", func() error { return en.WriteInt64(r.Step) }},
		{"entity_id", func() error { return en.WriteString(r.EntityID) }},
		{"type", func() error { return en.WriteString(r.TypeName) }},
		{"x", func() error { return en.WriteFloat64(r.PositionX) }},
		{"y", func() error { return en.WriteFloat64(r.PositionY) }},
	}
	for _, f := range fields {
		if err := en.WriteString(f.key); err != nil {
			return err
		}
		if err := f.wr(); err != nil {
			return err
		}
	}
	if err := en.WriteArrayHeader(uint32(len(r.Attributes))); err != nil {
		return err
	}
	for _, a := range r.Attributes {
		if err := a.encode(en); err != nil {
			return err
		}
	}
	return nil
}

func (a *Attribute) encode(en *msgp.Writer) error {
	if err := en.WriteMapHeader(5); err != nil {
		return err
	}
	pairs := []struct {
		key string
		wr  func() error
	}{
		{"name", func() error { return en.WriteString(a.Name) }},
		{"kind", func() error { return en.WriteString(a.Kind) }},
		{"i", func() error { return en.WriteInt64(a.I) }},
		{"f", func() error { return en.WriteFloat64(a.F) }},
		{"s", func() error { return en.WriteString(a.S) }},
	}
	for _, p := range pairs {
		if err := en.WriteString(p.key); err != nil {
			return err
		}
		if err := p.wr(); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMsg is EncodeMsg's inverse, tolerant of unknown keys (skipped via
// dc.Skip(), matching the generated-code convention's default case).
func (r *Record) DecodeMsg(dc *msgp.Reader) error {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		key, err := dc.ReadString()
		if err != nil {
			return err
		}
		switch key {
		case "replicate":
			r.Replicate, err = dc.ReadString()
		case "step":
			r.Step, err = dc.ReadInt64()
		case "entity_id":
			r.EntityID, err = dc.ReadString()
		case "type":
			r.TypeName, err = dc.ReadString()
		case "x":
			r.PositionX, err = dc.ReadFloat64()
		case "y":
			r.PositionY, err = dc.ReadFloat64()
		default:
			err = dc.Skip()
		}
		if err != nil {
			return msgp.WrapError(err, key)
		}
	}
	arrN, err := dc.ReadArrayHeader()
	if err != nil {
		return err
	}
	r.Attributes = make([]Attribute, arrN)
	for i := uint32(0); i < arrN; i++ {
		if err := r.Attributes[i].decode(dc); err != nil {
			return err
		}
	}
	return nil
}

func (a *Attribute) decode(dc *msgp.Reader) error {
	n, err := dc.ReadMapHeader()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		key, err := dc.ReadString()
		if err != nil {
			return err
		}
		switch key {
		case "name":
			a.Name, err = dc.ReadString()
		case "kind":
			a.Kind, err = dc.ReadString()
		case "i":
			a.I, err = dc.ReadInt64()
		case "f":
			a.F, err = dc.ReadFloat64()
		case "s":
			a.S, err = dc.ReadString()
		default:
			err = dc.Skip()
		}
		if err != nil {
			return msgp.WrapError(err, key)
		}
	}
	if a.Kind == "bool" {
		a.B = a.I != 0
	}
	return nil
}
