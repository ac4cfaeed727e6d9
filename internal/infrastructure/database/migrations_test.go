package database

import (
	"testing"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_000000_initial_schema.up.sql", "20260301_000000", "initial_schema", true, true},
		{"20260301_000000_initial_schema.down.sql", "20260301_000000", "initial_schema", false, true},
		{"20260301_000000.up.sql", "", "", false, false},
		{"readme.md", "", "", false, false},
		{"20260301_000000_x.sql", "", "", false, false},
	}

	for _, tt := range tests {
		version, name, isUp, ok := parseMigrationFilename(tt.filename)
		if ok != tt.wantOK {
			t.Errorf("parseMigrationFilename(%q) ok = %v, want %v", tt.filename, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if version != tt.wantVersion || name != tt.wantName || isUp != tt.wantUp {
			t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.filename, version, name, isUp, tt.wantVersion, tt.wantName, tt.wantUp)
		}
	}
}
