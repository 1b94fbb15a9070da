package checksum

import "testing"

func TestSumStable(t *testing.T) {
	a := Sum([]byte("hello"))
	if a != Sum([]byte("hello")) {
		t.Fatal("digest not stable")
	}
	if a == Sum([]byte("hello!")) {
		t.Error("different input produced same digest")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
}

func TestOfMatchesJSON(t *testing.T) {
	got, err := Of(map[string]string{"title": "Run"})
	if err != nil {
		t.Fatalf("Of: %v", err)
	}
	if want := Sum([]byte(`{"title":"Run"}`)); got != want {
		t.Errorf("Of = %q, want %q", got, want)
	}
}
