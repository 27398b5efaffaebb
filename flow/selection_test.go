package flow

import (
	"errors"
	"testing"
)

func TestEncodeSelection(t *testing.T) {
	yes, err := EncodeSelection("Yes", YesNo)
	if err != nil || yes != 1 {
		t.Fatalf("expected 1, got %d (%v)", yes, err)
	}
	no, err := EncodeSelection("No", YesNo)
	if err != nil || no != 0 {
		t.Fatalf("expected 0, got %d (%v)", no, err)
	}

	for _, bad := range []string{"", "yes", "NO", "Maybe", "1"} {
		if _, err := EncodeSelection(bad, YesNo); !errors.Is(err, ErrInvalidSelection) {
			t.Fatalf("%q: expected ErrInvalidSelection, got %v", bad, err)
		}
	}
}

func TestCatalogKeys(t *testing.T) {
	keys := YesNo.Keys()
	if len(keys) != 2 || keys[0] != "Yes" || keys[1] != "No" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
