package detection

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeScript creates an executable shell script acting as a fake detector.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-detect.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCommandDetector_Success(t *testing.T) {
	script := writeScript(t, `cat <<'JSON'
[{"face":{"note":"ok"},"vital_signs":{"heart_rate":{"value":70,"unit":"bpm"}}}]
JSON
`)
	d := NewCommandDetector(script, 10*time.Second, nil)

	faces, err := d.Detect(context.Background(), Request{VideoPath: writeVideo(t), Method: MethodPOS})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(faces) != 1 || *faces[0].VitalSigns.HeartRate.Value != 70 {
		t.Errorf("Detect() = %+v", faces)
	}
}

func TestCommandDetector_PassesArgumentsAndCredentialViaEnv(t *testing.T) {
	record := filepath.Join(t.TempDir(), "record.txt")
	script := writeScript(t, `echo "args=$*" > `+record+`
echo "key=$VITALLENS_API_KEY" >> `+record+`
echo "[]"
`)
	d := NewCommandDetector(script, 10*time.Second, nil)

	faces, err := d.Detect(context.Background(), Request{
		VideoPath: writeVideo(t),
		Method:    MethodVitalLens,
		APIKey:    "secret-key",
	})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("Detect() = %d faces, want 0", len(faces))
	}

	data, err := os.ReadFile(record)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, "--method VITALLENS") || !strings.Contains(text, "--format json") {
		t.Errorf("unexpected args: %s", text)
	}
	if strings.Contains(strings.SplitN(text, "\n", 2)[0], "secret-key") {
		t.Errorf("credential leaked into argv: %s", text)
	}
	if !strings.Contains(text, "key=secret-key") {
		t.Errorf("credential not passed via env: %s", text)
	}
}

func TestCommandDetector_RemovesWorkDir(t *testing.T) {
	root := t.TempDir()
	script := writeScript(t, `echo '{}' > vitallens_tmp.json
echo "[]"
`)
	d := NewCommandDetector(script, 10*time.Second, nil, WithTempRoot(root))

	if _, err := d.Detect(context.Background(), Request{VideoPath: writeVideo(t), Method: MethodG}); err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir not cleaned up: %d entries left", len(entries))
	}
}

func TestCommandDetector_StructuredError(t *testing.T) {
	script := writeScript(t, `echo '{"error":{"kind":"credential","message":"invalid api key"}}'
exit 3
`)
	d := NewCommandDetector(script, 10*time.Second, nil)

	_, err := d.Detect(context.Background(), Request{VideoPath: writeVideo(t), Method: MethodVitalLens, APIKey: "x"})
	var de *Error
	if !errors.As(err, &de) {
		t.Fatalf("Detect() error = %v, want *Error", err)
	}
	if de.Kind != KindCredential {
		t.Errorf("Kind = %v, want %v", de.Kind, KindCredential)
	}
}

func TestCommandDetector_StderrClassified(t *testing.T) {
	script := writeScript(t, `echo "Traceback: No face detected in frame" >&2
exit 1
`)
	d := NewCommandDetector(script, 10*time.Second, nil)

	_, err := d.Detect(context.Background(), Request{VideoPath: writeVideo(t), Method: MethodPOS})
	if KindOf(err) != KindNoFace {
		t.Errorf("KindOf(err) = %v, want %v (err=%v)", KindOf(err), KindNoFace, err)
	}
}

func TestCommandDetector_Timeout(t *testing.T) {
	script := writeScript(t, "exec sleep 5\n")
	d := NewCommandDetector(script, 100*time.Millisecond, nil)

	_, err := d.Detect(context.Background(), Request{VideoPath: writeVideo(t), Method: MethodPOS})
	if KindOf(err) != KindUnavailable {
		t.Errorf("KindOf(err) = %v, want %v (err=%v)", KindOf(err), KindUnavailable, err)
	}
}

func TestCommandDetector_MissingCommand(t *testing.T) {
	d := NewCommandDetector("definitely-not-a-real-detector-binary", time.Second, nil)

	_, err := d.Detect(context.Background(), Request{VideoPath: writeVideo(t), Method: MethodPOS})
	if KindOf(err) != KindUnavailable {
		t.Errorf("KindOf(err) = %v, want %v", KindOf(err), KindUnavailable)
	}
}

func TestDecodeOutput(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		faces   int
		wantErr bool
	}{
		{"array", `[{"face":{}}]`, 1, false},
		{"faces object", `{"faces":[{"face":{}},{"face":{}}]}`, 2, false},
		{"empty", ``, 0, true},
		{"text", `hello`, 0, true},
		{"error object", `{"error":{"kind":"no_face","message":"x"}}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			faces, err := decodeOutput([]byte(tt.out))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(faces) != tt.faces {
				t.Errorf("decodeOutput() = %d faces, want %d", len(faces), tt.faces)
			}
		})
	}
}
