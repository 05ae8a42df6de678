package vcs

import "testing"

func TestSlugify_CollapsesNonAlphanumericRuns(t *testing.T) {
	cases := map[string]string{
		"Add retry backoff!":      "add-retry-backoff",
		"  leading/trailing  ":    "leading-trailing",
		"Already-Slugged-123":     "already-slugged-123",
		"multiple   spaces--here": "multiple-spaces-here",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBranchName_CarriesRequiredPrefix(t *testing.T) {
	name := BranchName("Add retry backoff")
	if name != "seedgpt/add-retry-backoff" {
		t.Errorf("got %q", name)
	}
}
