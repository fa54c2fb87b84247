package category

import "testing"

func TestForFilename(t *testing.T) {
	cases := []struct {
		name string
		want Category
		err  error
	}{
		{"main.c", Source, nil},
		{"report.pdf", PDF, nil},
		{"notes.txt", Text, nil},
		{"bundle.zip", Archive, nil},
		{"docs/nested/a.pdf", PDF, nil},
		{"REPORT.PDF", PDF, nil},
		{"noextension", "", ErrNoExtension},
		{".hidden", "", ErrNoExtension},
		{"binary.exe", "", ErrUnsupported},
		{"archive.tar", "", ErrUnsupported},
	}
	for _, tc := range cases {
		got, err := ForFilename(tc.name)
		if err != tc.err {
			t.Errorf("ForFilename(%q): err %v, want %v", tc.name, err, tc.err)
			continue
		}
		if got != tc.want {
			t.Errorf("ForFilename(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestForExt(t *testing.T) {
	if c, ok := ForExt(".pdf"); !ok || c != PDF {
		t.Errorf("ForExt(.pdf) = %q, %v", c, ok)
	}
	if c, ok := ForExt(".PDF"); !ok || c != PDF {
		t.Errorf("ForExt(.PDF) = %q, %v", c, ok)
	}
	if _, ok := ForExt(".doc"); ok {
		t.Error("ForExt(.doc) accepted")
	}
	if _, ok := ForExt("pdf"); ok {
		t.Error("ForExt without leading dot accepted")
	}
}

func TestParse(t *testing.T) {
	for _, name := range []string{"source", "pdf", "text", "archive"} {
		if _, ok := Parse(name); !ok {
			t.Errorf("Parse(%q) rejected", name)
		}
	}
	if _, ok := Parse("video"); ok {
		t.Error("Parse(video) accepted")
	}
}

func TestDelegation(t *testing.T) {
	if Source.IsDelegated() {
		t.Error("source must be gateway-local")
	}
	for _, c := range Delegated {
		if !c.IsDelegated() {
			t.Errorf("%s listed as delegated but IsDelegated is false", c)
		}
	}
	if len(Order) != len(Delegated)+1 || Order[0] != Source {
		t.Errorf("Order = %v", Order)
	}
}

func TestExtRoundTrip(t *testing.T) {
	for _, c := range Order {
		got, ok := ForExt(c.Ext())
		if !ok || got != c {
			t.Errorf("ForExt(%s.Ext()) = %q, %v", c, got, ok)
		}
	}
}
