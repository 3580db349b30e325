package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obsfinder/obsfinder/internal/table"
)

const jobDocument = `<?xml version="1.0" encoding="UTF-8"?>
<uws:job xmlns:uws="http://www.ivoa.net/xml/UWS/v1.0" xmlns:xlink="http://www.w3.org/1999/xlink">
  <uws:jobId>%s</uws:jobId>
  <uws:phase>%s</uws:phase>
  %s
</uws:job>`

// fakeUWS mimics the async endpoint of a TAP service.
type fakeUWS struct {
	t        *testing.T
	mu       sync.Mutex
	phases   []string
	polls    int
	result   []byte
	errorMsg string
	form     url.Values
	headers  http.Header
}

func (f *fakeUWS) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tap/async", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(f.t, r.ParseForm())
		f.mu.Lock()
		f.form = r.PostForm
		f.headers = r.Header.Clone()
		f.mu.Unlock()
		w.Header().Set("Location", "http://"+r.Host+"/tap/async/1700000000123O")
		w.WriteHeader(http.StatusSeeOther)
	})
	mux.HandleFunc("GET /tap/async/1700000000123O", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		idx := min(f.polls, len(f.phases)-1)
		phase := f.phases[idx]
		f.polls++
		f.mu.Unlock()

		summary := ""
		if f.errorMsg != "" {
			summary = fmt.Sprintf(`<uws:errorSummary type="fatal"><uws:message>%s</uws:message></uws:errorSummary>`, f.errorMsg)
		}
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprintf(w, jobDocument, "1700000000123O", phase, summary)
	})
	mux.HandleFunc("GET /tap/async/1700000000123O/results/result", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write(f.result)
	})
	return mux
}

func (f *fakeUWS) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *fakeUWS) submitted() (url.Values, http.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form, f.headers
}

func newTestClient(t *testing.T, srv *httptest.Server, service Service, opts Options) *Client {
	t.Helper()
	transport, err := NewHTTPTransport("", 5*time.Second)
	require.NoError(t, err)
	service.BaseURL = srv.URL + "/tap/"
	return NewClient(service, transport, opts)
}

func fastOptions() Options {
	return Options{PollInterval: 5 * time.Millisecond, Timeout: 2 * time.Second}
}

func TestExecuteCompletes(t *testing.T) {
	fake := &fakeUWS{
		t:      t,
		phases: []string{"QUEUED", "EXECUTING", "EXECUTING", "COMPLETED"},
		result: []byte("source_id,phot_g_mean_mag,l\n5853498713190525696,12.5,359.5\n4295806720,,0.25\n"),
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv, Service{
		Name:     "gaia",
		Params:   map[string]string{"REQUEST": "doQuery", "LANG": "ADQL"},
		JobInfo:  true,
		Encoding: DefaultEncoding,
	}, fastOptions())

	res, err := client.Execute(context.Background(), Query{
		Text:        "SELECT source_id FROM gaiadr3.gaia_source",
		IDColumn:    "source_id",
		Name:        "obsfinder-gaia",
		Description: "l=0 b=0",
	})
	require.NoError(t, err)

	assert.Equal(t, "1700000000123O", res.Job.ID)
	assert.Equal(t, PhaseCompleted, res.Job.Phase)
	assert.Equal(t, 4, fake.pollCount())

	require.Equal(t, 2, res.Table.Len())
	assert.Equal(t, table.IntValue(5853498713190525696), res.Table.Rows[0][0])
	assert.True(t, res.Table.Rows[1][1].IsNull())

	form, headers := fake.submitted()
	assert.Equal(t, "SELECT source_id FROM gaiadr3.gaia_source", form.Get("QUERY"))
	assert.Equal(t, "csv", form.Get("FORMAT"))
	assert.Equal(t, "RUN", form.Get("PHASE"))
	assert.Equal(t, "ADQL", form.Get("LANG"))
	assert.Equal(t, "doQuery", form.Get("REQUEST"))
	assert.Equal(t, "obsfinder-gaia", form.Get("JOBNAME"))
	assert.Equal(t, "l=0 b=0", form.Get("JOBDESCRIPTION"))
	assert.Equal(t, "application/x-www-form-urlencoded", headers.Get("Content-Type"))
}

func TestExecuteWithoutJobInfo(t *testing.T) {
	fake := &fakeUWS{t: t, phases: []string{"COMPLETED"}, result: []byte("glon,glat\n1,2\n")}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv, Service{Name: "irsa"}, fastOptions())
	_, err := client.Execute(context.Background(), Query{Text: "SELECT glon FROM fp_psc", Name: "ignored"})
	require.NoError(t, err)

	form, _ := fake.submitted()
	assert.Empty(t, form.Get("JOBNAME"))
	assert.Empty(t, form.Get("LANG"))
}

func TestExecuteDecodesLatin1(t *testing.T) {
	// 0xe9 is e-acute in ISO-8859-1 and not valid UTF-8 on its own.
	fake := &fakeUWS{t: t, phases: []string{"COMPLETED"}, result: []byte("glon,glat,caf\xe9\n1,2,3\n")}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv, Service{Name: "irsa", Encoding: DefaultEncoding}, fastOptions())
	res, err := client.Execute(context.Background(), Query{Text: "SELECT 1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"glon", "glat", "café"}, res.Table.Columns)

	utf8Client := newTestClient(t, srv, Service{Name: "irsa", Encoding: "utf-8"}, fastOptions())
	_, err = utf8Client.Execute(context.Background(), Query{Text: "SELECT 1"})
	var perr *ProtocolError
	assert.True(t, errors.As(err, &perr))

	text, err := decodeText([]byte("caf\xe9"), DefaultEncoding)
	require.NoError(t, err)
	assert.Equal(t, "café", text)

	_, err = decodeText([]byte("caf\xe9"), "utf-8")
	assert.Error(t, err)
}

func TestExecuteRemoteError(t *testing.T) {
	fake := &fakeUWS{
		t:        t,
		phases:   []string{"EXECUTING", "ERROR"},
		errorMsg: "Cannot parse query: unknown table fp_psx",
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv, Service{Name: "irsa"}, fastOptions())
	_, err := client.Execute(context.Background(), Query{Text: "SELECT * FROM fp_psx"})
	require.Error(t, err)

	var remote *RemoteQueryError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, PhaseError, remote.Phase)
	assert.Equal(t, "1700000000123O", remote.JobID)
	assert.Contains(t, remote.Diagnostic, "unknown table fp_psx")
}

func TestExecuteAbortedKeepsRawBody(t *testing.T) {
	fake := &fakeUWS{t: t, phases: []string{"ABORTED"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv, Service{Name: "gaia"}, fastOptions())
	_, err := client.Execute(context.Background(), Query{Text: "SELECT 1"})

	var remote *RemoteQueryError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, PhaseAborted, remote.Phase)
	assert.Contains(t, remote.Diagnostic, "<uws:phase>ABORTED</uws:phase>")
}

func TestExecuteTimeout(t *testing.T) {
	fake := &fakeUWS{t: t, phases: []string{"EXECUTING"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv, Service{Name: "gaia"}, Options{
		PollInterval: 5 * time.Millisecond,
		Timeout:      60 * time.Millisecond,
	})
	_, err := client.Execute(context.Background(), Query{Text: "SELECT 1"})
	require.Error(t, err)

	var timeout *QueryTimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, PhaseExecuting, timeout.LastPhase)
	assert.GreaterOrEqual(t, fake.pollCount(), 2)
}

func TestExecuteContextCanceled(t *testing.T) {
	fake := &fakeUWS{t: t, phases: []string{"QUEUED"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := newTestClient(t, srv, Service{Name: "gaia"}, Options{PollInterval: 10 * time.Millisecond, Timeout: time.Minute})
	_, err := client.Execute(ctx, Query{Text: "SELECT 1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestExecuteProtocolErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		op      string
	}{
		{
			name: "submit answers 200 instead of redirect",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, "ok")
			},
			op: "submit",
		},
		{
			name: "redirect without location",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusSeeOther)
			},
			op: "submit",
		},
		{
			name: "status document is not xml",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					w.Header().Set("Location", "/tap/async/job1")
					w.WriteHeader(http.StatusSeeOther)
					return
				}
				_, _ = io.WriteString(w, "EXECUTING")
			},
			op: "poll",
		},
		{
			name: "status document has unknown phase",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					w.Header().Set("Location", "/tap/async/job1")
					w.WriteHeader(http.StatusSeeOther)
					return
				}
				fmt.Fprintf(w, jobDocument, "job1", "RUNNING", "")
			},
			op: "poll",
		},
		{
			name: "status endpoint not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Method == http.MethodPost {
					w.Header().Set("Location", "/tap/async/job1")
					w.WriteHeader(http.StatusSeeOther)
					return
				}
				http.NotFound(w, r)
			},
			op: "poll",
		},
		{
			name: "result endpoint fails",
			handler: func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.Method == http.MethodPost:
					w.Header().Set("Location", "/tap/async/job1")
					w.WriteHeader(http.StatusSeeOther)
				case strings.HasSuffix(r.URL.Path, "/results/result"):
					http.Error(w, "gone", http.StatusGone)
				default:
					fmt.Fprintf(w, jobDocument, "job1", "COMPLETED", "")
				}
			},
			op: "fetch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := newTestClient(t, srv, Service{Name: "gaia"}, fastOptions())
			_, err := client.Execute(context.Background(), Query{Text: "SELECT 1"})
			require.Error(t, err)

			var perr *ProtocolError
			require.True(t, errors.As(err, &perr), "got %T: %v", err, err)
			assert.Equal(t, tt.op, perr.Op)
		})
	}
}

func TestExecuteParseError(t *testing.T) {
	fake := &fakeUWS{t: t, phases: []string{"COMPLETED"}, result: []byte("a,b\n1\n")}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	client := newTestClient(t, srv, Service{Name: "gaia"}, fastOptions())
	_, err := client.Execute(context.Background(), Query{Text: "SELECT 1"})

	var perr *table.ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestExecuteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := newTestClient(t, srv, Service{Name: "gaia"}, fastOptions())
	_, err := client.Execute(context.Background(), Query{Text: "SELECT 1"})
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "submit", terr.Op)
}

func TestExecuteThroughProxy(t *testing.T) {
	fake := &fakeUWS{t: t, phases: []string{"EXECUTING", "COMPLETED"}, result: []byte("glon,glat\n1,2\n")}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	var proxied atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied.Add(1)
		out := r.Clone(r.Context())
		out.RequestURI = ""
		resp, err := http.DefaultTransport.RoundTrip(out)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		for k, v := range resp.Header {
			w.Header()[k] = v
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}))
	defer proxy.Close()

	transport, err := NewHTTPTransport(strings.TrimPrefix(proxy.URL, "http://"), 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, transport.Proxy())

	client := NewClient(Service{Name: "irsa", BaseURL: srv.URL + "/tap"}, transport, fastOptions())
	res, err := client.Execute(context.Background(), Query{Text: "SELECT glon, glat FROM fp_psc"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Table.Len())

	// submit + two polls + fetch
	assert.Equal(t, int32(4), proxied.Load())
}

func TestParseProxy(t *testing.T) {
	u, err := ParseProxy("11.0.0.254:3142")
	require.NoError(t, err)
	assert.Equal(t, "http://11.0.0.254:3142", u.String())

	for _, bad := range []string{"proxy", ":8080", "proxy:http", "proxy:0", "proxy:70000"} {
		_, err := ParseProxy(bad)
		assert.Error(t, err, bad)
	}
}

func TestJobIDFromLocation(t *testing.T) {
	tests := []struct {
		location string
		want     string
		wantErr  bool
	}{
		{location: "https://gea.esac.esa.int/tap-server/tap/async/1700000000123O", want: "1700000000123O"},
		{location: "https://irsa.ipac.caltech.edu/TAP/async/abc123/", want: "abc123"},
		{location: "/tap/async/job1", want: "job1"},
		{location: "https://example.org/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got, err := jobIDFromLocation(tt.location)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase(" executing\n")
	require.NoError(t, err)
	assert.Equal(t, PhaseExecuting, p)
	assert.False(t, p.Terminal())

	assert.True(t, PhaseCompleted.Terminal())
	assert.False(t, PhaseCompleted.Failed())
	assert.True(t, PhaseAborted.Failed())
	assert.True(t, PhaseError.Failed())

	_, err = ParsePhase("")
	assert.Error(t, err)
	_, err = ParsePhase("DONE")
	assert.Error(t, err)
}

func TestLookupEncoding(t *testing.T) {
	enc, err := LookupEncoding("")
	require.NoError(t, err)
	assert.Nil(t, enc)

	enc, err = LookupEncoding("latin1")
	require.NoError(t, err)
	assert.NotNil(t, enc)

	_, err = LookupEncoding("klingon-8")
	assert.Error(t, err)
}

func TestExecuteTimeoutWhilePollHangs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tap/async", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/tap/async/job1")
		w.WriteHeader(http.StatusSeeOther)
	})
	mux.HandleFunc("GET /tap/async/job1", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv, Service{Name: "gaia"}, Options{
		PollInterval: 5 * time.Millisecond,
		Timeout:      80 * time.Millisecond,
	})

	start := time.Now()
	_, err := client.Execute(context.Background(), Query{Text: "SELECT 1"})

	var timeout *QueryTimeoutError
	require.True(t, errors.As(err, &timeout), "got %v", err)
	assert.Equal(t, PhasePending, timeout.LastPhase)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecuteSlowResultBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tap/async", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/tap/async/job1")
		w.WriteHeader(http.StatusSeeOther)
	})
	mux.HandleFunc("GET /tap/async/job1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, jobDocument, "job1", "COMPLETED", "")
	})
	mux.HandleFunc("GET /tap/async/job1/results/result", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "j_m,h_m\n")
		w.(http.Flusher).Flush()
		time.Sleep(150 * time.Millisecond)
		_, _ = io.WriteString(w, "10.5,9.8\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	transport, err := NewHTTPTransport("", 50*time.Millisecond)
	require.NoError(t, err)
	client := NewClient(Service{Name: "irsa", BaseURL: srv.URL + "/tap"}, transport, fastOptions())

	res, err := client.Execute(context.Background(), Query{Text: "SELECT j_m, h_m FROM fp_psc"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Table.Len())
}
