package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raine/ebay-specifics/internal/analysis"
	"github.com/raine/ebay-specifics/internal/extract"
	"github.com/raine/ebay-specifics/internal/specifics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitWindow = 2 * time.Second

type analyzerFunc func(ctx context.Context, imageURL string) (*specifics.AnalysisResult, error)

func (f analyzerFunc) Analyze(ctx context.Context, imageURL string) (*specifics.AnalysisResult, error) {
	return f(ctx, imageURL)
}

func receive(t *testing.T, pc *PageContext) ResultEvent {
	t.Helper()
	select {
	case ev := <-pc.Results():
		return ev
	case <-time.After(waitWindow):
		t.Fatal("no result event within wait window")
		return ResultEvent{}
	}
}

func assertNothingReceived(t *testing.T, pc *PageContext, window time.Duration) {
	t.Helper()
	select {
	case ev := <-pc.Results():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(window):
	}
}

func resultFor(color string) *specifics.AnalysisResult {
	attrs := specifics.AttributeSet{}
	attrs.Set("color", color)
	return &specifics.AnalysisResult{ItemSpecifics: attrs}
}

func TestSubmitDeliversResult(t *testing.T) {
	r := New(analyzerFunc(func(ctx context.Context, imageURL string) (*specifics.AnalysisResult, error) {
		assert.Equal(t, "https://example.com/shirt.jpg", imageURL)
		return resultFor("blue"), nil
	}))

	pc := r.Register()
	defer pc.Close()

	requestID := r.Submit(context.Background(), pc, extract.ImageReference{URL: "https://example.com/shirt.jpg"})
	assert.NotEmpty(t, requestID)

	ev := receive(t, pc)
	assert.Equal(t, EventSpecificsResult, ev.Type)
	assert.Equal(t, requestID, ev.RequestID)

	color, ok := ev.Data.Get("color")
	assert.True(t, ok)
	assert.Equal(t, "blue", color)
}

func TestContextIsolation(t *testing.T) {
	// The stub echoes the image URL back as the color, so each context's
	// result is distinguishable.
	r := New(analyzerFunc(func(ctx context.Context, imageURL string) (*specifics.AnalysisResult, error) {
		return resultFor(imageURL), nil
	}))

	pcA := r.Register()
	defer pcA.Close()
	pcB := r.Register()
	defer pcB.Close()

	r.Submit(context.Background(), pcA, extract.ImageReference{URL: "https://example.com/a.jpg"})
	r.Submit(context.Background(), pcB, extract.ImageReference{URL: "https://example.com/b.jpg"})

	evA := receive(t, pcA)
	evB := receive(t, pcB)

	colorA, _ := evA.Data.Get("color")
	colorB, _ := evB.Data.Get("color")
	assert.Equal(t, "https://example.com/a.jpg", colorA)
	assert.Equal(t, "https://example.com/b.jpg", colorB)

	assertNothingReceived(t, pcA, 100*time.Millisecond)
	assertNothingReceived(t, pcB, 100*time.Millisecond)
}

func TestConcurrentRequestsAreIndependent(t *testing.T) {
	r := New(analyzerFunc(func(ctx context.Context, imageURL string) (*specifics.AnalysisResult, error) {
		return resultFor(imageURL), nil
	}))

	pc := r.Register()
	defer pc.Close()

	ids := make(map[string]bool)
	for i := 0; i < 3; i++ {
		id := r.Submit(context.Background(), pc, extract.ImageReference{
			URL: fmt.Sprintf("https://example.com/%d.jpg", i),
		})
		ids[id] = true
	}
	assert.Len(t, ids, 3)

	// Results arrive in completion order, each carrying its request ID.
	for i := 0; i < 3; i++ {
		ev := receive(t, pc)
		assert.Equal(t, EventSpecificsResult, ev.Type)
		assert.True(t, ids[ev.RequestID], "unknown request id %s", ev.RequestID)
		delete(ids, ev.RequestID)
	}
}

func TestTransportFailureEvent(t *testing.T) {
	r := New(analysis.NewClient(analysis.ClientOpts{Endpoint: "http://127.0.0.1:1/analyze"}))

	pc := r.Register()
	defer pc.Close()

	r.Submit(context.Background(), pc, extract.ImageReference{URL: "https://example.com/shirt.jpg"})

	ev := receive(t, pc)
	assert.Equal(t, EventSpecificsFailed, ev.Type)
	assert.Equal(t, FailureTransport, ev.Failure)
	assert.Nil(t, ev.Data)
}

func TestContractViolationContainment(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http 500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "non-JSON body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>oops</html>"))
			},
		},
		{
			name: "missing itemSpecifics",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"success":true}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			r := New(analysis.NewClient(analysis.ClientOpts{Endpoint: ts.URL}))
			pc := r.Register()
			defer pc.Close()

			r.Submit(context.Background(), pc, extract.ImageReference{URL: "https://example.com/shirt.jpg"})

			ev := receive(t, pc)
			assert.Equal(t, EventSpecificsFailed, ev.Type)
			assert.Equal(t, FailureContract, ev.Failure)

			// Terminal: exactly one event per request.
			assertNothingReceived(t, pc, 100*time.Millisecond)
		})
	}
}

func TestResultAfterCloseIsDropped(t *testing.T) {
	release := make(chan struct{})
	r := New(analyzerFunc(func(ctx context.Context, imageURL string) (*specifics.AnalysisResult, error) {
		<-release
		return resultFor("blue"), nil
	}))

	pc := r.Register()
	r.Submit(context.Background(), pc, extract.ImageReference{URL: "https://example.com/shirt.jpg"})

	// Page navigates away while the request is in flight.
	pc.Close()
	close(release)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), waitWindow)
	defer cancel()
	require.NoError(t, r.Shutdown(shutdownCtx))

	select {
	case ev := <-pc.Results():
		t.Fatalf("result should have been dropped, got %+v", ev)
	default:
	}
}

func TestShutdownWaitsForInFlight(t *testing.T) {
	release := make(chan struct{})
	r := New(analyzerFunc(func(ctx context.Context, imageURL string) (*specifics.AnalysisResult, error) {
		<-release
		return resultFor("blue"), nil
	}))

	pc := r.Register()
	defer pc.Close()
	r.Submit(context.Background(), pc, extract.ImageReference{URL: "https://example.com/shirt.jpg"})

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, r.Shutdown(shortCtx))

	close(release)
	receive(t, pc)

	okCtx, cancel2 := context.WithTimeout(context.Background(), waitWindow)
	defer cancel2()
	assert.NoError(t, r.Shutdown(okCtx))
}
