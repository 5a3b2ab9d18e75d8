package excimer

import "testing"

func TestIsClosureName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"func1", true},
		{"func12", true},
		{"func", false},
		{"funcs", false},
		{"main", false},
		{"Process", false},
		{"", false},
	}
	for _, c := range cases {
		if got := isClosureName(c.name); got != c.want {
			t.Errorf("isClosureName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestStagger_WithinPeriod(t *testing.T) {
	period := FromSeconds(0.1).Duration()
	for i := 0; i < 100; i++ {
		d := stagger(period)
		if d < 0 || d >= period {
			t.Fatalf("stagger returned %v, want within [0, %v)", d, period)
		}
	}
}

func TestStagger_ZeroPeriod(t *testing.T) {
	if d := stagger(0); d != 0 {
		t.Fatalf("stagger(0) = %v, want 0", d)
	}
}
