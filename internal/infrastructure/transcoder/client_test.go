package transcoder

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudsaver/cloudsaver/internal/application/contracts"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/config"
	sharederrors "github.com/cloudsaver/cloudsaver/internal/shared/errors"
	"github.com/cloudsaver/cloudsaver/pkg/utils/media"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(config.TranscoderConfig{BaseURL: srv.URL, TimeoutSeconds: 5})
	return c, srv
}

func reduceReq(input string, ratio float64) contracts.ReduceRequest {
	return contracts.ReduceRequest{
		Source:                strings.NewReader(input),
		SourceSize:            int64(len(input)),
		Filename:              "x.jpg",
		MimeType:              "image/jpeg",
		MediaType:             media.TypeImage,
		TargetQuality:         "medium",
		MinSizeReductionRatio: ratio,
	}
}

func TestReduceAccepted(t *testing.T) {
	// 100字节输入，60字节产物，要求至少省30%
	output := bytes.Repeat([]byte("b"), 60)
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transcode" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("media_type"); got != "image" {
			t.Errorf("media_type = %s", got)
		}
		w.Write(output)
	})
	defer srv.Close()

	res, err := c.Reduce(context.Background(), reduceReq(strings.Repeat("a", 100), 0.3))
	if err != nil {
		t.Fatalf("expected acceptance: %v", err)
	}
	defer res.Payload.Close()

	if res.Size != 60 {
		t.Errorf("expected size 60, got %d", res.Size)
	}
	got, _ := io.ReadAll(res.Payload)
	if !bytes.Equal(got, output) {
		t.Error("payload mismatch")
	}
}

func TestReduceNoSavings(t *testing.T) {
	// 100字节输入，95字节产物，要求至少省30% -> 拒绝
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("b"), 95))
	})
	defer srv.Close()

	_, err := c.Reduce(context.Background(), reduceReq(strings.Repeat("a", 100), 0.3))
	if !sharederrors.IsCode(err, sharederrors.ErrorCodeNoSavings) {
		t.Fatalf("expected NO_SAVINGS, got %v", err)
	}
}

func TestReduceOutputLargerThanInput(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("b"), 120))
	})
	defer srv.Close()

	_, err := c.Reduce(context.Background(), reduceReq(strings.Repeat("a", 100), 0))
	if !sharederrors.IsCode(err, sharederrors.ErrorCodeNoSavings) {
		t.Fatalf("expected NO_SAVINGS, got %v", err)
	}
}

func TestReduceTranscodeFailed(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unsupported codec", http.StatusUnprocessableEntity)
	})
	defer srv.Close()

	_, err := c.Reduce(context.Background(), reduceReq(strings.Repeat("a", 100), 0.3))
	if !sharederrors.IsCode(err, sharederrors.ErrorCodeTranscodeFailed) {
		t.Fatalf("expected TRANSCODE_FAILED, got %v", err)
	}
}

func TestPing(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/version" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"1.2.0","codecs":["h264","hevc"]}`))
	})
	defer srv.Close()

	v, err := c.Ping(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v.Version != "1.2.0" || len(v.Codecs) != 2 {
		t.Fatalf("unexpected version response: %+v", v)
	}
}

func TestMeetsReductionFloor(t *testing.T) {
	tests := []struct {
		name    string
		in, out int64
		ratio   float64
		want    bool
	}{
		{"正好达标", 100, 70, 0.3, true},
		{"超额达标", 100, 60, 0.3, true},
		{"差一字节", 100, 71, 0.3, false},
		{"零比例仍需变小", 100, 100, 0, false},
		{"零比例稍小即可", 100, 99, 0, true},
		{"非法输入", 0, 0, 0.3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := meetsReductionFloor(tt.in, tt.out, tt.ratio); got != tt.want {
				t.Errorf("meetsReductionFloor(%d, %d, %v) = %v, want %v", tt.in, tt.out, tt.ratio, got, tt.want)
			}
		})
	}
}
