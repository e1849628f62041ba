package media

import (
	"errors"
	"testing"
	"time"
)

func TestParseProbeDuration(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    time.Duration
		wantErr error
	}{
		{
			name: "format duration",
			json: `{"format":{"duration":"12.500000"},"streams":[]}`,
			want: 12500 * time.Millisecond,
		},
		{
			name: "stream duration",
			json: `{"format":{},"streams":[{"codec_type":"audio","duration":"99"},{"codec_type":"video","duration":"3.0"}]}`,
			want: 3 * time.Second,
		},
		{
			name: "frames over rate",
			json: `{"format":{"duration":"N/A"},"streams":[{"codec_type":"video","nb_frames":"300","avg_frame_rate":"0/0","r_frame_rate":"30/1"}]}`,
			want: 10 * time.Second,
		},
		{
			name:    "nothing usable",
			json:    `{"format":{},"streams":[{"codec_type":"video"}]}`,
			wantErr: ErrUnknownDuration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProbeDuration([]byte(tt.json))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseProbeDuration() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := ParseProbeDuration([]byte("{")); err == nil {
		t.Error("expected decode error")
	}
}

func TestParseRate(t *testing.T) {
	tests := map[string]float64{
		"30/1":       30,
		"30000/1001": 30000.0 / 1001.0,
		"25":         25,
		"0/0":        0,
		"":           0,
	}
	for in, want := range tests {
		if got := parseRate(in); got != want {
			t.Errorf("parseRate(%q) = %v, want %v", in, got, want)
		}
	}
}
