// Package sqlcli provides the data-marshalling core of a SQL call-level interface.
package sqlcli

// Status is the return code of a CLI primitive. The values are the ones
// used by ODBC so drivers can pass native codes through unchanged.
type Status int16

const (
	Success         Status = 0
	SuccessWithInfo Status = 1
	NeedData        Status = 99
	NoData          Status = 100
	Failed          Status = -1
	InvalidHandle   Status = -2
)

// Succeeded reports whether st is Success or SuccessWithInfo.
func (st Status) Succeeded() bool {
	return st == Success || st == SuccessWithInfo
}

func (st Status) String() string {
	switch st {
	case Success:
		return "SUCCESS"
	case SuccessWithInfo:
		return "SUCCESS_WITH_INFO"
	case NeedData:
		return "NEED_DATA"
	case NoData:
		return "NO_DATA"
	case Failed:
		return "ERROR"
	case InvalidHandle:
		return "INVALID_HANDLE"
	}
	return "UNKNOWN"
}

// Length indicator sentinels.
const (
	// NullData marks a NULL value.
	NullData int64 = -1
	// NoTotal is reported by GetData when the remaining length is unknown.
	NoTotal int64 = -4
	// lenDataAtExecOffset is the base of the deferred-length encoding.
	lenDataAtExecOffset int64 = -100
)

// LenDataAtExec encodes the indicator of a parameter whose n bytes are
// supplied later through PutData.
func LenDataAtExec(n int) int64 {
	return lenDataAtExecOffset - int64(n)
}

// DeferredLength decodes an indicator produced by LenDataAtExec.
func DeferredLength(indicator int64) (n int, ok bool) {
	if indicator > lenDataAtExecOffset {
		return 0, false
	}
	return int(lenDataAtExecOffset - indicator), true
}

// Attribute selects a column attribute for ColAttribute.
type Attribute uint16

const (
	AttrDisplaySize Attribute = 6
	AttrOctetLength Attribute = 1013
)

// Nullability as reported by DescribeCol.
type Nullability int16

const (
	NoNulls         Nullability = 0
	Nullable        Nullability = 1
	NullableUnknown Nullability = 2
)

// ParamBinding is the description of one input parameter handed to
// BindParameter. Data is owned by the caller and must stay valid until the
// statement is executed or the parameters are rebound.
type ParamBinding struct {
	SQLType    SQLType
	CType      CType
	ColumnSize int
	Scale      int
	Data       []byte
	// Indicator is the byte length of Data, NullData, or a LenDataAtExec
	// value for deferred parameters.
	Indicator int64
}

// Deferred reports whether the parameter data is streamed with PutData.
func (p ParamBinding) Deferred() bool {
	_, ok := DeferredLength(p.Indicator)
	return ok
}

// ColumnMeta is the result of DescribeCol.
type ColumnMeta struct {
	Name     string
	SQLType  SQLType
	Size     int
	Scale    int
	Nullable Nullability
}

// Conn is a driver connection able to hand out statement handles.
type Conn interface {
	AllocStatement() (StmtHandle, error)
	Close() error
}

// Transactor is implemented by connections that manage transactions
// through the CLI rather than through SQL text.
type Transactor interface {
	Begin() error
	Commit() error
	Rollback() error
}

// StmtHandle is the set of CLI primitives the marshalling core drives.
// Parameter and column indexes are 0-based; drivers translate them.
//
// GetData writes at most len(buf) bytes. For character transfers the value
// is terminated inside buf (one zero byte for CChar, two for CWChar), so a
// call delivers at most len(buf)-1 or len(buf)-2 payload bytes. The returned
// indicator is the number of payload bytes that remained before the call,
// NoTotal when unknown, or NullData. A call made after the value has been
// fully returned reports NoData.
type StmtHandle interface {
	Prepare(query string) Status
	ExecDirect(query string) Status
	Execute() Status
	BindParameter(index int, p ParamBinding) Status
	// ParamData returns the index of the next deferred parameter with
	// NeedData, or the final execution status once all data is supplied.
	ParamData() (index int, st Status)
	PutData(p []byte) Status
	NumResultCols() (int, Status)
	DescribeCol(index int) (ColumnMeta, Status)
	ColAttribute(index int, attr Attribute) (int64, Status)
	Fetch() Status
	GetData(index int, ct CType, buf []byte) (indicator int64, st Status)
	RowCount() (int64, Status)
	Cancel() Status
	Free() Status
	Diagnostics() []DiagRecord
}
