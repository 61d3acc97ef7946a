package path

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"single label", "a", false},
		{"nested", "a.b.c", false},
		{"underscore prefix", "_a.b_1", false},
		{"empty", "", true},
		{"leading digit label", "a.1b", true},
		{"empty label", "a..b", true},
		{"hyphen not allowed", "a-b.c", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestJoinAndParent(t *testing.T) {
	base := MustParse("a.b")
	joined, err := base.Join("c", "d")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if joined.String() != "a.b.c.d" {
		t.Errorf("Join() = %q, want %q", joined.String(), "a.b.c.d")
	}
	if base.String() != "a.b" {
		t.Errorf("Join() mutated receiver: %q", base.String())
	}

	parent, ok := joined.Parent()
	if !ok || parent.String() != "a.b.c" {
		t.Errorf("Parent() = %q,%v want %q,true", parent.String(), ok, "a.b.c")
	}

	_, ok = MustParse("a").Parent()
	if ok {
		t.Error("Parent() of a single-label path should report false")
	}
}

func TestAncestryAndEquality(t *testing.T) {
	root := MustParse("a")
	mid := MustParse("a.b")
	leaf := MustParse("a.b.c")

	if !root.IsAncestorOf(mid) || !root.IsAncestorOf(leaf) {
		t.Error("root should be an ancestor of mid and leaf")
	}
	if !leaf.IsDescendantOf(root) {
		t.Error("leaf should be a descendant of root")
	}
	if root.IsAncestorOf(root) {
		t.Error("IsAncestorOf should be strict (non-reflexive)")
	}
	if !mid.Equal(MustParse("a.b")) {
		t.Error("Equal should hold for identical label sequences")
	}
}

func TestMatchWildcard(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"a.b.c", "a.*.c", true},
		{"a.b.c", "a.*.d", false},
		{"a.b.c.d", "a.**", true},
		{"a.b.c.d", "a.**.d", true},
		{"a", "a", true},
		{"a.b", "a", false},
	}
	for _, tt := range tests {
		p := MustParse(tt.path)
		if got := p.MatchWildcard(tt.pattern); got != tt.want {
			t.Errorf("MatchWildcard(%q,%q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}

func TestToLquery(t *testing.T) {
	if got := ToLquery("a.*.c"); got != "a.*{1}.c" {
		t.Errorf("ToLquery() = %q", got)
	}
	if got := ToLquery("a.**"); got != "a.*" {
		t.Errorf("ToLquery() = %q", got)
	}
}
