package logger

import (
    "testing"

    "github.com/rs/zerolog"

    "github.com/djtchess/jiraSages2/internal/config"
)

func TestNew_AppliesConfiguredLevel(t *testing.T) {
    cases := []struct {
        level string
        want  zerolog.Level
    }{
        {"debug", zerolog.DebugLevel},
        {"warn", zerolog.WarnLevel},
        {"", zerolog.InfoLevel},
        {"garbage", zerolog.InfoLevel},
    }
    for _, tc := range cases {
        l := New(config.Config{AppEnv: "prod", LogLevel: tc.level})
        if got := l.GetLevel(); got != tc.want {
            t.Fatalf("level %q: got %v, want %v", tc.level, got, tc.want)
        }
    }
}
