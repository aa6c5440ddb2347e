package dialect

import "testing"

func TestIsPostgres(t *testing.T) {
	if !IsPostgres(PGX) {
		t.Error("expected pgx to be postgres")
	}
	if IsPostgres(SQLite3) {
		t.Error("expected sqlite3 to not be postgres")
	}
}

func TestDocumentFragments(t *testing.T) {
	cases := []struct {
		driver, typ, param, sel string
	}{
		{SQLite3, "TEXT", "?", "document"},
		{PGX, "JSONB", "?::jsonb", "document::text"},
	}
	for _, tc := range cases {
		if got := DocumentType(tc.driver); got != tc.typ {
			t.Errorf("%s type: got %q", tc.driver, got)
		}
		if got := DocumentParam(tc.driver); got != tc.param {
			t.Errorf("%s param: got %q", tc.driver, got)
		}
		if got := DocumentSelect(tc.driver, "document"); got != tc.sel {
			t.Errorf("%s select: got %q", tc.driver, got)
		}
	}
}
