package layout

import "testing"

func TestResolveDependentRecomputesEnd(t *testing.T) {
	cases := []struct {
		name     string
		edited   Field
		location int64
		size     int64
		end      int64
		want     int64
	}{
		{name: "location edit", edited: FieldLocation, location: 0x1000, size: 0x0C00, end: 0x1B00, want: 0x1C00},
		{name: "size edit", edited: FieldSize, location: 0x1000, size: 0x0C00, end: 0x1B00, want: 0x1C00},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			field, value, ok := ResolveDependent(tc.edited, tc.location, tc.size, tc.end)
			if !ok {
				t.Fatalf("expected recomputation")
			}
			if field != FieldEnd {
				t.Fatalf("expected end field, got %s", field)
			}
			if value != tc.want {
				t.Fatalf("expected 0x%X, got 0x%X", tc.want, value)
			}
		})
	}
}

func TestResolveDependentBackComputesSize(t *testing.T) {
	field, value, ok := ResolveDependent(FieldEnd, 0x1000, 0x0C00, 0x2000)
	if !ok {
		t.Fatalf("expected recomputation")
	}
	if field != FieldSize {
		t.Fatalf("expected size field, got %s", field)
	}
	if value != 0x1000 {
		t.Fatalf("expected size 0x1000, got 0x%X", value)
	}
}

func TestResolveDependentSuppressesNegativeSize(t *testing.T) {
	if _, _, ok := ResolveDependent(FieldEnd, 0x1000, 0x0C00, 0x0500); ok {
		t.Fatalf("end before location must not recompute size")
	}
}

func TestResolveDependentRejectsNegativeInputs(t *testing.T) {
	if _, _, ok := ResolveDependent(FieldLocation, -1, 0x10, 0x10); ok {
		t.Fatalf("negative location must not recompute")
	}
}

func TestResolveDependentIgnoresNonAddressFields(t *testing.T) {
	if _, _, ok := ResolveDependent(FieldName, 0x1000, 0x10, 0x1010); ok {
		t.Fatalf("name edits have no dependent field")
	}
}
