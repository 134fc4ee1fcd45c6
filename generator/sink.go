package generator

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/dovigen/metadata"
)

// DefaultOutput is the output file used when none is given.
const DefaultOutput = "RPU_generated.bin"

// srtPayloadSize is the largest message written to an SRT connection, the
// standard live payload of 7 MPEG-TS packets.
const srtPayloadSize = 1316

// srtLatencyNs is the SRT latency setting in nanoseconds (120ms).
const srtLatencyNs = 120_000_000

const srtDialTimeout = 10 * time.Second

const defaultStreamID = "live/rpu"

func outputError(frame int, err error) *metadata.Error {
	e := metadata.NewError(metadata.ErrOutputWrite, metadata.SourceOutput, "", err)
	e.Frame = frame
	return e
}

// openSink opens out for writing: a file path, or an srt:// URL which is
// dialed in caller mode.
func openSink(out string) (io.WriteCloser, error) {
	if strings.HasPrefix(out, "srt://") {
		target, err := parseSRTURL(out)
		if err != nil {
			return nil, err
		}
		return dialSRT(target)
	}
	f, err := os.Create(filepath.Clean(out))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// srtTarget is a parsed srt:// output URL.
type srtTarget struct {
	Address  string
	StreamID string
}

// parseSRTURL accepts srt://host:port[?streamid=...].
func parseSRTURL(raw string) (srtTarget, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return srtTarget{}, fmt.Errorf("parsing SRT URL: %w", err)
	}
	if u.Scheme != "srt" {
		return srtTarget{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" || u.Port() == "" {
		return srtTarget{}, fmt.Errorf("SRT URL %q needs host and port", raw)
	}

	t := srtTarget{
		Address:  u.Host,
		StreamID: defaultStreamID,
	}
	if id := u.Query().Get("streamid"); id != "" {
		t.StreamID = id
	}
	return t, nil
}

func dialSRT(t srtTarget) (io.WriteCloser, error) {
	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs
	cfg.StreamID = t.StreamID

	type dialResult struct {
		conn *srtgo.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := srtgo.Dial(t.Address, cfg)
		ch <- dialResult{conn, err}
	}()

	timer := time.NewTimer(srtDialTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("SRT dial %s failed: %w", t.Address, res.err)
		}
		return &srtSink{conn: res.conn}, nil
	case <-timer.C:
		// Close any connection that completes after the timeout.
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, fmt.Errorf("SRT dial %s timed out after %s", t.Address, srtDialTimeout)
	}
}

// srtSink splits writes into SRT-sized messages.
type srtSink struct {
	conn io.WriteCloser
}

func (s *srtSink) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), srtPayloadSize)
		m, err := s.conn.Write(p[:n])
		written += m
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}

func (s *srtSink) Close() error {
	return s.conn.Close()
}
