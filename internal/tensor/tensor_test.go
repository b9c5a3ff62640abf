package tensor

import "testing"

func TestNewAndRow(t *testing.T) {
	x := New(2, 3, 4)
	if x.Len() != 24 {
		t.Fatalf("len=%d", x.Len())
	}
	row := x.Row(1)
	if len(row) != 12 {
		t.Fatalf("row len=%d", len(row))
	}
	row[11] = 7
	if x.Data[23] != 7 {
		t.Fatalf("row is not a view in row-major order: %v", x.Data)
	}
}

func TestFromDataShapeMismatch(t *testing.T) {
	if _, err := FromData(make([]float64, 5), 2, 3); err == nil {
		t.Fatalf("expected error for mismatched data length")
	}
	y, err := FromData(make([]float64, 6), 3, 2)
	if err != nil {
		t.Fatalf("from data: %v", err)
	}
	if !y.SameShape(3, 2) || y.SameShape(2, 3) || y.SameShape(6) {
		t.Fatalf("SameShape wrong for %v", y.Shape)
	}
	if got := ShapeString(y.Shape); got != "(3, 2)" {
		t.Fatalf("shape string=%s", got)
	}
}
