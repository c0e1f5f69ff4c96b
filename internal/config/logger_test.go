package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestNewLogger(t *testing.T) {
	cases := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"defaults", "", "", false},
		{"json_info", "info", "json", false},
		{"json_debug", "debug", "json", false},
		{"console_warn", "warn", "console", false},
		{"bad_level", "shout", "json", true},
		{"bad_format", "info", "xml", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			if tc.level != "" {
				v.Set("logging.level", tc.level)
			}
			if tc.format != "" {
				v.Set("logging.format", tc.format)
			}

			logger, err := NewLogger(v)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLogger: %v", err)
			}
			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
		})
	}
}
