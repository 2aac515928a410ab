package checksum

import "testing"

func TestSum(t *testing.T) {
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %q", got)
	}
}

func TestETag(t *testing.T) {
	got := ETag([]byte("card"))
	if len(got) != 18 || got[0] != '"' || got[17] != '"' {
		t.Errorf("ETag = %q", got)
	}
	if got != ETag([]byte("card")) {
		t.Error("ETag not stable")
	}
}
