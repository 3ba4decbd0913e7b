package permission

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

type fakeGate struct {
	state       State
	queryErr    error
	request     Status
	requestErr  error
	settingsErr error
	panics      bool
	requests    int
}

func (g *fakeGate) Query(ctx context.Context) (State, error) {
	if g.panics {
		panic("native module missing")
	}
	return g.state, g.queryErr
}

func (g *fakeGate) Request(ctx context.Context) (Status, error) {
	g.requests++
	return g.request, g.requestErr
}

func (g *fakeGate) OpenSettings(ctx context.Context) error {
	return g.settingsErr
}

func TestEnsure(t *testing.T) {
	boom := errors.New("unavailable")
	tests := []struct {
		name         string
		gate         *fakeGate
		want         Status
		wantGranted  bool
		wantRequests int
	}{
		{
			name:        "already granted",
			gate:        &fakeGate{state: State{Status: StatusGranted}},
			want:        StatusGranted,
			wantGranted: true,
		},
		{
			name:         "undetermined asks",
			gate:         &fakeGate{state: State{Status: StatusUndetermined}, request: StatusGranted},
			want:         StatusGranted,
			wantGranted:  true,
			wantRequests: 1,
		},
		{
			name:         "denied but can ask again",
			gate:         &fakeGate{state: State{Status: StatusDenied, CanAskAgain: true}, request: StatusDenied},
			want:         StatusDenied,
			wantRequests: 1,
		},
		{
			name: "denied for good",
			gate: &fakeGate{state: State{Status: StatusDenied}},
			want: StatusDeniedPermanently,
		},
		{
			name: "query error",
			gate: &fakeGate{queryErr: boom},
			want: StatusError,
		},
		{
			name:         "request error",
			gate:         &fakeGate{state: State{Status: StatusUndetermined}, requestErr: boom},
			want:         StatusError,
			wantRequests: 1,
		},
		{
			name: "panic",
			gate: &fakeGate{panics: true},
			want: StatusError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Ensure(context.Background(), tt.gate)
			if res.Status != tt.want || res.Granted != tt.wantGranted {
				t.Errorf("Ensure = %+v, want status %s granted %v", res, tt.want, tt.wantGranted)
			}
			if tt.want == StatusError && res.Err == nil {
				t.Error("error result without Err")
			}
			if tt.gate.requests != tt.wantRequests {
				t.Errorf("Request called %d times, want %d", tt.gate.requests, tt.wantRequests)
			}
		})
	}
}

type instructedGate struct{ fakeGate }

func (instructedGate) ManualInstructions() string { return "do it by hand" }

func TestOpenSettingsFallback(t *testing.T) {
	ctx := context.Background()
	if got := OpenSettings(ctx, &fakeGate{}); got != "" {
		t.Errorf("opened settings returned %q", got)
	}
	if got := OpenSettings(ctx, &fakeGate{settingsErr: errors.New("no settings app")}); got != genericInstructions {
		t.Errorf("generic fallback = %q", got)
	}
	g := &instructedGate{fakeGate{settingsErr: errors.New("no settings app")}}
	if got := OpenSettings(ctx, g); got != "do it by hand" {
		t.Errorf("instructed fallback = %q", got)
	}
}

type scriptedPrompter struct {
	answers  []bool
	err      error
	asked    int
	informed []string
}

func (p *scriptedPrompter) Confirm(ctx context.Context, title, message string) (bool, error) {
	if p.err != nil {
		return false, p.err
	}
	ans := p.answers[p.asked]
	p.asked++
	return ans, nil
}

func (p *scriptedPrompter) Inform(ctx context.Context, title, message string) error {
	p.informed = append(p.informed, message)
	return nil
}

func newTestDirectoryGate(p Prompter, accessErr error) *DirectoryGate {
	g := NewDirectoryGate("/photos", p)
	g.access = func(string, uint32) error { return accessErr }
	return g
}

func TestDirectoryGateGrantFlow(t *testing.T) {
	ctx := context.Background()
	p := &scriptedPrompter{answers: []bool{true}}
	g := newTestDirectoryGate(p, nil)

	state, err := g.Query(ctx)
	if err != nil || state.Status != StatusUndetermined || !state.CanAskAgain {
		t.Fatalf("initial Query = (%+v, %v)", state, err)
	}
	res := Ensure(ctx, g)
	if !res.Granted {
		t.Fatalf("Ensure = %+v", res)
	}
	if res := Ensure(ctx, g); !res.Granted || p.asked != 1 {
		t.Errorf("second Ensure asked again: %+v, asked=%d", res, p.asked)
	}
}

func TestDirectoryGateRefusalIsPermanent(t *testing.T) {
	ctx := context.Background()
	p := &scriptedPrompter{answers: []bool{false, true}}
	g := newTestDirectoryGate(p, nil)

	if res := Ensure(ctx, g); res.Status != StatusDenied {
		t.Fatalf("first Ensure = %+v", res)
	}
	if res := Ensure(ctx, g); res.Status != StatusDeniedPermanently {
		t.Fatalf("second Ensure = %+v", res)
	}
	if p.asked != 1 {
		t.Errorf("prompter asked %d times, want 1", p.asked)
	}

	if msg := OpenSettings(ctx, g); msg != "" {
		t.Errorf("OpenSettings fallback = %q", msg)
	}
	if res := Ensure(ctx, g); !res.Granted {
		t.Errorf("access not granted after settings: %+v", res)
	}
}

func TestDirectoryGateInaccessible(t *testing.T) {
	ctx := context.Background()
	p := &scriptedPrompter{}
	g := newTestDirectoryGate(p, errors.New("permission denied"))

	if res := Ensure(ctx, g); res.Status != StatusDeniedPermanently {
		t.Errorf("Ensure = %+v", res)
	}
	if err := g.OpenSettings(ctx); err != nil {
		t.Fatal(err)
	}
	if len(p.informed) != 1 || !strings.Contains(p.informed[0], "chmod") {
		t.Errorf("informed = %v", p.informed)
	}
}

func TestDirectoryGateRealAccess(t *testing.T) {
	g := NewDirectoryGate(t.TempDir(), &scriptedPrompter{answers: []bool{true}})
	if res := Ensure(context.Background(), g); !res.Granted {
		t.Errorf("Ensure on temp dir = %+v", res)
	}
}

func TestDirectoryGatePrompterError(t *testing.T) {
	boom := errors.New("display unavailable")
	g := newTestDirectoryGate(&scriptedPrompter{err: boom}, nil)
	res := Ensure(context.Background(), g)
	if res.Status != StatusError || !errors.Is(res.Err, boom) {
		t.Errorf("Ensure = %+v", res)
	}
}

type fakeHeadBucket struct {
	err   error
	calls int
}

func (f *fakeHeadBucket) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.calls++
	return &s3.HeadBucketOutput{}, f.err
}

func TestBucketGate(t *testing.T) {
	forbidden := &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusForbidden}},
		Err:      errors.New("forbidden"),
	}
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{name: "accessible", want: StatusGranted},
		{name: "access denied code", err: &smithy.GenericAPIError{Code: "AccessDenied"}, want: StatusDeniedPermanently},
		{name: "http 403", err: forbidden, want: StatusDeniedPermanently},
		{name: "network error", err: errors.New("dial tcp: timeout"), want: StatusError},
		{name: "missing bucket", err: &smithy.GenericAPIError{Code: "NotFound"}, want: StatusError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewBucketGate(&fakeHeadBucket{err: tt.err}, "photos", nil)
			if res := Ensure(context.Background(), g); res.Status != tt.want {
				t.Errorf("Ensure = %+v, want %s", res, tt.want)
			}
		})
	}
}

func TestBucketGateSettings(t *testing.T) {
	ctx := context.Background()
	if err := NewBucketGate(&fakeHeadBucket{}, "photos", nil).OpenSettings(ctx); err == nil {
		t.Error("expected error without prompter")
	}
	p := &scriptedPrompter{}
	g := NewBucketGate(&fakeHeadBucket{}, "photos", p)
	if err := g.OpenSettings(ctx); err != nil {
		t.Fatal(err)
	}
	if len(p.informed) != 1 || !strings.Contains(p.informed[0], `"photos"`) {
		t.Errorf("informed = %v", p.informed)
	}
}

func TestTerminalPrompter(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			p := NewTerminalPrompter(strings.NewReader(tt.input), &out)
			got, err := p.Confirm(context.Background(), "Title", "Allow?")
			if err != nil || got != tt.want {
				t.Errorf("Confirm(%q) = (%v, %v)", tt.input, got, err)
			}
			if !strings.Contains(out.String(), "Allow? (y/N): ") {
				t.Errorf("prompt = %q", out.String())
			}
		})
	}

	var out bytes.Buffer
	if err := NewTerminalPrompter(strings.NewReader(""), &out).Inform(context.Background(), "T", "M"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "T\nM\n" {
		t.Errorf("Inform wrote %q", out.String())
	}
}
