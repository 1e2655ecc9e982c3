package sqldb

import "testing"

func TestParseDSN(t *testing.T) {
	tests := []struct {
		in      string
		driver  string
		dsn     string
		dialect dialect
	}{
		{"postgres://u:p@db:5432/archive?sslmode=disable", "pgx", "postgres://u:p@db:5432/archive?sslmode=disable", dialectPostgres},
		{"postgresql://db/archive", "pgx", "postgresql://db/archive", dialectPostgres},
		{"host=db user=app dbname=archive", "pgx", "host=db user=app dbname=archive", dialectPostgres},
		{"sqlite:file:/tmp/a.db", "sqlite3", "file:/tmp/a.db", dialectSQLite},
		{"SQLite:", "sqlite3", "file:archive.sqlite?_pragma=busy_timeout(5000)", dialectSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDSN(tt.in)
			if err != nil {
				t.Fatalf("parseDSN(%q): %v", tt.in, err)
			}
			if got.driver != tt.driver || got.dsn != tt.dsn || got.dialect != tt.dialect {
				t.Errorf("parseDSN(%q) = %+v", tt.in, got)
			}
		})
	}
}

func TestDialect_Placeholder(t *testing.T) {
	if got := dialectPostgres.placeholder(3); got != "$3" {
		t.Errorf("postgres placeholder = %q", got)
	}
	if got := dialectSQLite.placeholder(3); got != "?" {
		t.Errorf("sqlite placeholder = %q", got)
	}
}
