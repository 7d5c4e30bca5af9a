package key

import (
	"reflect"
	"testing"
)

func TestVariations_ThreeSegments(t *testing.T) {
	got := Variations("a.b.c")
	want := []string{"a.b.c", "b.c", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Variations(a.b.c) = %v, want %v", got, want)
	}
}

func TestVariations_FourSegments(t *testing.T) {
	got := Variations("auth.errors.login.failed")
	want := []string{"auth.errors.login.failed", "errors.login.failed", "login.failed", "failed"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Variations = %v, want %v", got, want)
	}

	// Full key first, last segment always present.
	if got[0] != "auth.errors.login.failed" {
		t.Fatalf("first variation must be the full key, got %q", got[0])
	}
	found := false
	for _, v := range got {
		if v == "failed" {
			found = true
		}
	}
	if !found {
		t.Fatal("variations must include the last segment alone")
	}
}

func TestVariations_SingleSegment(t *testing.T) {
	got := Variations("submit")
	want := []string{"submit"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Variations(submit) = %v, want %v", got, want)
	}
}

func TestVariations_EmptySegmentsTrimmed(t *testing.T) {
	got := Variations("a..b.")
	want := []string{"a.b", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Variations(a..b.) = %v, want %v", got, want)
	}
}

func TestHintWords(t *testing.T) {
	got := HintWords("auth.errors.invalidCredentials")
	want := []string{"invalid", "credentials"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("HintWords = %v, want %v", got, want)
	}

	got = HintWords("form.save_changes_now")
	want = []string{"save", "changes", "now"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("HintWords = %v, want %v", got, want)
	}

	// Short tokens are dropped.
	got = HintWords("nav.go_to_home")
	want = []string{"home"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("HintWords = %v, want %v", got, want)
	}
}

func TestEditDistance(t *testing.T) {
	if d := EditDistance("recover", "recover"); d != 0 {
		t.Fatalf("EditDistance(a, a) = %d, want 0", d)
	}
	if d := EditDistance("", "abc"); d != 3 {
		t.Fatalf("EditDistance(\"\", abc) = %d, want 3", d)
	}
	if d := EditDistance("cat", "cats"); d != 1 {
		t.Fatalf("EditDistance(cat, cats) = %d, want 1", d)
	}
	if d := EditDistance("kitten", "sitting"); d != 3 {
		t.Fatalf("EditDistance(kitten, sitting) = %d, want 3", d)
	}
}

func TestIsBareDottedIdentifier(t *testing.T) {
	cases := map[string]bool{
		"auth.errors.invalid_credentials": true,
		"a.b":                             true,
		"Hello world":                     false,
		"Invalid credentials.":            false,
		"auth":                            false,
		"auth..b":                         false,
		"1.5":                             false,
	}
	for in, want := range cases {
		if got := IsBareDottedIdentifier(in); got != want {
			t.Errorf("IsBareDottedIdentifier(%q) = %v, want %v", in, got, want)
		}
	}
}
