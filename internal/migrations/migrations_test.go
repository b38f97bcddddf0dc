package migrations

import (
	"strings"
	"testing"
)

func TestInitialSchema(t *testing.T) {
	data, err := Files.ReadFile("001_init.sql")
	if err != nil {
		t.Fatalf("read 001_init.sql: %v", err)
	}
	schema := string(data)
	for _, table := range []string{"users", "app_passwords", "calendars", "calendar_objects", "user_settings"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Errorf("initial schema does not create %s", table)
		}
	}
}
