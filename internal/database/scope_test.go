package database

import "testing"

func TestWithSearchPath(t *testing.T) {
	tests := []struct {
		name   string
		dsn    string
		schema string
		want   string
	}{
		{"url without query", "postgres://u:p@localhost:5432/db", "shop", "postgres://u:p@localhost:5432/db?search_path=shop"},
		{"url with query", "postgres://u:p@localhost:5432/db?sslmode=disable", "catalog", "postgres://u:p@localhost:5432/db?search_path=catalog&sslmode=disable"},
		{"keyword form", "host=localhost dbname=db", "shop", "host=localhost dbname=db search_path=shop"},
		{"empty schema", "postgres://localhost/db", "", "postgres://localhost/db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithSearchPath(tt.dsn, tt.schema); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
