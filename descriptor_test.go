package sqlcli

import (
	"errors"
	"testing"
)

func TestAllocateDescriptors(t *testing.T) {
	stmt := NewStatement(newFakeConn())

	if err := stmt.AllocateDescriptors(3, ColumnKind); err != nil {
		t.Fatalf("Failed to allocate descriptors: %v", err)
	}
	if len(stmt.Columns()) != 3 {
		t.Fatalf("Expected 3 column descriptors, got %d", len(stmt.Columns()))
	}
	for i, d := range stmt.Columns() {
		if d == nil {
			t.Fatalf("Descriptor %d is nil", i)
		}
		if d.Name != "" || d.IsNull || d.Len() != 0 || d.InternalSize != 0 {
			t.Errorf("Descriptor %d is not zeroed: %+v", i, d)
		}
	}
	if len(stmt.Params()) != 0 {
		t.Errorf("Expected no parameter descriptors, got %d", len(stmt.Params()))
	}

	// Reallocating replaces the array.
	if err := stmt.AllocateDescriptors(1, ColumnKind); err != nil {
		t.Fatalf("Failed to reallocate descriptors: %v", err)
	}
	if len(stmt.Columns()) != 1 {
		t.Errorf("Expected 1 column descriptor, got %d", len(stmt.Columns()))
	}

	if err := stmt.AllocateDescriptors(0, ParameterKind); err != nil {
		t.Fatalf("Failed to allocate zero descriptors: %v", err)
	}
	if len(stmt.Params()) != 0 {
		t.Errorf("Expected no parameter descriptors, got %d", len(stmt.Params()))
	}
}

func TestAllocateDescriptorsRange(t *testing.T) {
	stmt := NewStatement(newFakeConn())

	for _, count := range []int{-1, MaxDescriptors + 1} {
		err := stmt.AllocateDescriptors(count, ParameterKind)
		if !IsError(err, ErrInterface) {
			t.Errorf("Expected interface error for count %d, got %v", count, err)
		}
	}

	limited := NewStatement(newFakeConn(), WithMaxDescriptors(2))
	if err := limited.AllocateDescriptors(3, ColumnKind); !IsError(err, ErrInterface) {
		t.Errorf("Expected interface error above the configured limit, got %v", err)
	}
	if err := limited.AllocateDescriptors(2, ColumnKind); err != nil {
		t.Errorf("Failed to allocate at the configured limit: %v", err)
	}
}

func TestAllocateDescriptorsRollback(t *testing.T) {
	orig := newDescriptor
	t.Cleanup(func() { newDescriptor = orig })

	var made []*Descriptor
	newDescriptor = func() (*Descriptor, error) {
		if len(made) == 2 {
			return nil, errors.New("no memory")
		}
		d := &Descriptor{}
		d.data.Alloc(64)
		made = append(made, d)
		return d, nil
	}

	stmt := NewStatement(newFakeConn())
	err := stmt.AllocateDescriptors(4, ColumnKind)
	if !IsError(err, ErrInternal) {
		t.Fatalf("Expected internal error, got %v", err)
	}
	if len(stmt.Columns()) != 0 {
		t.Errorf("Expected zero columns after failed allocation, got %d", len(stmt.Columns()))
	}
	for i, d := range made {
		if !d.data.Released() {
			t.Errorf("Descriptor %d allocated before the failure was not released", i)
		}
	}
}

func TestFreeDescriptors(t *testing.T) {
	stmt := NewStatement(newFakeConn())
	if err := stmt.AllocateDescriptors(2, ColumnKind); err != nil {
		t.Fatalf("Failed to allocate descriptors: %v", err)
	}
	stmt.rowCount = 7
	cols := stmt.Columns()
	cols[0].data.Alloc(32)

	if err := stmt.FreeDescriptors(ColumnKind); err != nil {
		t.Fatalf("Failed to free descriptors: %v", err)
	}
	if len(stmt.Columns()) != 0 {
		t.Errorf("Expected no columns, got %d", len(stmt.Columns()))
	}
	if !cols[0].data.Released() {
		t.Error("Expected column buffer to be released")
	}
	if stmt.RowCount() != -1 {
		t.Errorf("Expected row count -1 after freeing columns, got %d", stmt.RowCount())
	}

	// Freeing an empty kind is fine, and parameters leave the row count.
	stmt.rowCount = 3
	if err := stmt.FreeDescriptors(ParameterKind); err != nil {
		t.Fatalf("Failed to free empty parameters: %v", err)
	}
	if stmt.RowCount() != 3 {
		t.Errorf("Expected row count to survive freeing parameters, got %d", stmt.RowCount())
	}
}

func TestFreeRowData(t *testing.T) {
	stmt := NewStatement(newFakeConn())
	if err := stmt.AllocateDescriptors(2, ColumnKind); err != nil {
		t.Fatalf("Failed to allocate descriptors: %v", err)
	}
	fixed, long := stmt.Columns()[0], stmt.Columns()[1]
	fixed.SQLType = TypeInteger
	fixed.data.Alloc(4)
	long.SQLType = TypeLongVarBinary
	long.data.Alloc(1024)

	stmt.FreeRowData()
	if fixed.data.Released() {
		t.Error("Fixed column buffer should be kept")
	}
	if !long.data.Released() {
		t.Error("Long column buffer should be released")
	}
	if len(stmt.Columns()) != 2 {
		t.Errorf("Expected descriptors to be kept, got %d", len(stmt.Columns()))
	}
}
