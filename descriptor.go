// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

import (
	"go.uber.org/zap"
)

// DescriptorKind selects the parameter or the column descriptor array of a
// statement.
type DescriptorKind int

const (
	ParameterKind DescriptorKind = iota
	ColumnKind
)

func (k DescriptorKind) String() string {
	if k == ParameterKind {
		return "parameter"
	}
	return "column"
}

// Descriptor describes one parameter or result column and owns the buffer
// its value is transferred through.
type Descriptor struct {
	Name      string
	SQLType   SQLType
	CType     CType
	Precision int
	Scale     int
	Nullable  Nullability

	// DisplaySize is the column display width, -1 when unbounded.
	DisplaySize int64
	// InternalSize is the capacity allocated for a fixed or bounded value.
	InternalSize int

	IsNull bool
	// Indicator is the length the driver reported for the last value,
	// NoTotal when it could not tell, or NullData.
	Indicator int64

	data Buffer
}

// Bytes returns the current value bytes. It is empty for NULL.
func (d *Descriptor) Bytes() []byte {
	if d.IsNull {
		return nil
	}
	return d.data.Bytes()
}

// Len returns the content length of the value buffer.
func (d *Descriptor) Len() int { return d.data.Len() }

func (d *Descriptor) setNull() {
	d.IsNull = true
	d.Indicator = NullData
}

func (d *Descriptor) release() {
	d.data.Release()
}

// newDescriptor allocates one zeroed descriptor. Tests replace it to inject
// allocation failures.
var newDescriptor = func() (*Descriptor, error) {
	return &Descriptor{}, nil
}

// AllocateDescriptors replaces the descriptor array of the given kind with
// count zero-initialized descriptors. On failure nothing allocated by this
// call survives and the kind's count is zero.
func (s *Statement) AllocateDescriptors(count int, kind DescriptorKind) error {
	if err := s.FreeDescriptors(kind); err != nil {
		return err
	}

	descs, err := s.newDescriptors(count, kind)
	if err != nil {
		return err
	}
	s.setDescriptors(kind, descs)
	return nil
}

// newDescriptors builds a detached array of count descriptors. Slots
// allocated before a failure are released before returning.
func (s *Statement) newDescriptors(count int, kind DescriptorKind) ([]*Descriptor, error) {
	if count < 0 || count > s.cfg.maxDescriptors {
		return nil, errorf(ErrInterface, "%s count %d out of range [0, %d]", kind, count, s.cfg.maxDescriptors)
	}

	descs := make([]*Descriptor, count)
	for i := range descs {
		d, err := newDescriptor()
		if err != nil || d == nil {
			for j := 0; j < i; j++ {
				descs[j].release()
				descs[j] = nil
			}
			s.log.Error("descriptor allocation failed",
				zap.Stringer("kind", kind),
				zap.Int("index", i),
				zap.Int("count", count),
				zap.Error(err))
			msg := "descriptor allocation failed"
			if err != nil {
				msg += ": " + err.Error()
			}
			return nil, NewError(ErrInternal, msg)
		}
		descs[i] = d
	}
	return descs, nil
}

// FreeDescriptors releases every buffer of the given kind and drops the
// array. Freeing columns also makes the row count unknown.
func (s *Statement) FreeDescriptors(kind DescriptorKind) error {
	for _, d := range s.descriptors(kind) {
		if d != nil {
			d.release()
		}
	}
	s.setDescriptors(kind, nil)
	if kind == ColumnKind {
		s.rowCount = -1
	}
	return nil
}

// FreeRowData releases the buffers holding per-row long values. Column
// descriptors and their fixed buffers are kept for the next fetch.
func (s *Statement) FreeRowData() error {
	for _, d := range s.columns {
		if d != nil && d.SQLType.IsLong() {
			d.release()
		}
	}
	return nil
}

func (s *Statement) descriptors(kind DescriptorKind) []*Descriptor {
	if kind == ParameterKind {
		return s.params
	}
	return s.columns
}

func (s *Statement) setDescriptors(kind DescriptorKind, descs []*Descriptor) {
	if kind == ParameterKind {
		s.params = descs
		return
	}
	s.columns = descs
}
