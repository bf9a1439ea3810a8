package repository

import (
	"strings"
	"testing"
)

func TestNormalizeDSN(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		wantErr bool
	}{
		{name: "bare dsn gets parseTime", dsn: "user:pass@tcp(127.0.0.1:3306)/cloudsaver"},
		{name: "parseTime already set", dsn: "user:pass@tcp(127.0.0.1:3306)/cloudsaver?parseTime=true"},
		{name: "parseTime false is overridden", dsn: "user:pass@tcp(127.0.0.1:3306)/cloudsaver?parseTime=false"},
		{name: "other params preserved", dsn: "user:pass@tcp(127.0.0.1:3306)/cloudsaver?charset=utf8mb4"},
		{name: "garbage rejected", dsn: "not a dsn", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeDSN(tt.dsn)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(got, "parseTime=true") {
				t.Errorf("parseTime not enforced: %s", got)
			}
			if strings.Contains(tt.dsn, "charset=utf8mb4") && !strings.Contains(got, "charset=utf8mb4") {
				t.Errorf("existing params lost: %s", got)
			}
		})
	}
}
