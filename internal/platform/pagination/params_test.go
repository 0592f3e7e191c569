package pagination

import (
	"errors"
	"net/url"
	"testing"
)

func TestParseDefaultsAndCaps(t *testing.T) {
	params, err := Parse(url.Values{}, Options{DefaultPageSize: 20, MaxPageSize: 40})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 20 {
		t.Fatalf("expected default page size 20, got %d", params.PageSize)
	}

	params, err = Parse(url.Values{"pageSize": []string{"500"}}, Options{MaxPageSize: 40})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if params.PageSize != 40 {
		t.Fatalf("expected capped page size 40, got %d", params.PageSize)
	}
}

func TestParseRejectsInvalidPageSize(t *testing.T) {
	for _, raw := range []string{"abc", "-1", "0"} {
		_, err := Parse(url.Values{"pageSize": []string{raw}}, Options{})
		if !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("pageSize %q: expected ErrInvalidPageSize, got %v", raw, err)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cursor := Cursor{StartAfter: []any{"INV-00042", "2026-01-15"}}
	token, err := EncodeToken(cursor)
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	params, err := Parse(url.Values{"pageToken": []string{token}}, Options{})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(params.Cursor.StartAfter) != 2 {
		t.Fatalf("expected two cursor values, got %d", len(params.Cursor.StartAfter))
	}
	if params.Cursor.StartAfter[0] != "INV-00042" {
		t.Fatalf("unexpected cursor value: %v", params.Cursor.StartAfter[0])
	}
}

func TestParseRejectsMalformedToken(t *testing.T) {
	_, err := Parse(url.Values{"pageToken": []string{"%%%not-base64%%%"}}, Options{})
	if !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestEncodeTokenEmptyCursor(t *testing.T) {
	token, err := EncodeToken(Cursor{})
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token for empty cursor, got %q", token)
	}
}
