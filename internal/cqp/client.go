package cqp

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"cqb/internal/errors"
	"cqb/internal/logging"
)

// State represents the lifecycle state of the engine process
type State string

const (
	// StateStarting indicates the process is being spawned
	StateStarting State = "starting"
	// StateReady indicates the process accepts commands
	StateReady State = "ready"
	// StateDead indicates the process has terminated; a dead client
	// cannot be reused
	StateDead State = "dead"
)

const (
	// eolCommand is pushed after every command; the engine executes it and
	// echoes the marker line, which frames the end of the response
	eolCommand = ".EOL.;"
	// eolMarker is the line the engine prints for the EOL command
	eolMarker = "-::-EOL-::-"

	// DefaultTimeout is the hard execution ceiling per request
	DefaultTimeout = 900 * time.Second
	// DefaultPollInterval is how often the watchdog checks the in-flight call
	DefaultPollInterval = 5 * time.Second
)

// minimum supported engine protocol version
const (
	minVersionMajor = 3
	minVersionMinor = 4
)

var versionRe = regexp.MustCompile(`CQP\s+version\s+(\d+)\.(\d+)(?:\.(\d+))?`)

// Options configures a client
type Options struct {
	// Registry is the corpus registry directory passed to the engine
	Registry string
	// Timeout is the hard execution ceiling; 0 means DefaultTimeout
	Timeout time.Duration
	// TimeoutFactor scales the ceiling; 0 means 1.0
	TimeoutFactor float64
	// PollInterval is the watchdog poll interval; 0 means the default
	PollInterval time.Duration
	// InitOptions are processing options set right after startup
	InitOptions map[string]string
}

// Client owns one engine subprocess and frames requests and responses over
// its standard streams. A client serializes calls: one in-flight Exec at a
// time. The watchdog goroutine may kill the process asynchronously, so
// callers must check Ok after every call. Once dead, a client is dead for
// good; recovery means constructing a new one.
type Client struct {
	binary   string
	registry string
	logger   *logging.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader

	timeout time.Duration
	poll    time.Duration

	// execMu serializes command issuance
	execMu sync.Mutex

	stateMu     sync.RWMutex
	state       State
	version     string
	deathCode   errors.Code
	deathReason string

	// busyMu guards the in-flight call bookkeeping read by the watchdog
	busyMu    sync.Mutex
	inFlight  bool
	busySince time.Time

	// errMu guards the error accumulator and the per-call status
	errMu     sync.Mutex
	allErrs   []string
	pending   []string
	stderrBuf []string
	lastOK    bool

	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

// Spawn starts the engine subprocess, validates its version banner and
// launches the watchdog. Spawn failures and banner failures are fatal.
func Spawn(binary string, opts Options, logger *logging.Logger) (*Client, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	factor := opts.TimeoutFactor
	if factor == 0 {
		factor = 1.0
	}
	poll := opts.PollInterval
	if poll == 0 {
		poll = DefaultPollInterval
	}

	c := &Client{
		binary:   binary,
		registry: opts.Registry,
		logger:   logger,
		timeout:  time.Duration(float64(timeout) * factor),
		poll:     poll,
		state:    StateStarting,
		lastOK:   true,
		done:     make(chan struct{}),
	}

	cmd := exec.Command(binary, "-c", "-r", opts.Registry)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.New(errors.ProcessStartup, "failed to create stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.New(errors.ProcessStartup, "failed to create stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.New(errors.ProcessStartup, "failed to create stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.New(errors.ProcessStartup,
			fmt.Sprintf("failed to start engine binary %s", binary), err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.reader = bufio.NewReader(stdout)

	c.wg.Add(1)
	go c.stderrLoop(stderr)

	c.setState(StateReady)

	// The watchdog must be running before the banner round trip: an engine
	// that never echoes the sentinel would otherwise block Spawn forever.
	c.wg.Add(1)
	go c.watchdog()

	// The engine prints its banner on startup; frame it with an EOL round
	// trip and verify the protocol version before accepting work.
	banner, err := c.Exec("")
	if err != nil {
		c.Shutdown()
		return nil, errors.New(errors.ProcessStartup, "no version banner from engine", err)
	}
	version, ok := parseVersion(banner)
	if !ok {
		c.Shutdown()
		return nil, errors.Newf(errors.ProcessStartup, "unparseable version banner: %q", strings.TrimSpace(banner))
	}
	c.version = version

	for name, value := range opts.InitOptions {
		c.SetOption(name, value)
	}

	logger.Info("engine process started", map[string]interface{}{
		"binary":  binary,
		"version": version,
		"timeout": c.timeout.String(),
	})

	return c, nil
}

func parseVersion(banner string) (string, bool) {
	m := versionRe.FindStringSubmatch(banner)
	if m == nil {
		return "", false
	}
	var major, minor int
	fmt.Sscanf(m[1], "%d", &major)
	fmt.Sscanf(m[2], "%d", &minor)
	if major < minVersionMajor || (major == minVersionMajor && minor < minVersionMinor) {
		return "", false
	}
	version := m[1] + "." + m[2]
	if m[3] != "" {
		version += "." + m[3]
	}
	return version, true
}

// State returns the current lifecycle state
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = s
}

// Version returns the engine version from the startup banner
func (c *Client) Version() string {
	return c.version
}

// Ok reports whether the process is alive and the last call succeeded
// without engine errors
func (c *Client) Ok() bool {
	if c.State() != StateReady {
		return false
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.lastOK
}

// Errors returns every error message accumulated over the client's lifetime
func (c *Client) Errors() []string {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return append([]string(nil), c.allErrs...)
}

// stderrGrace is how long TakeEngineErrors waits for the error stream to
// flush when nothing has arrived yet; the stream is asynchronous and may
// lag the command that provoked it
const stderrGrace = 20 * time.Millisecond

// TakeEngineErrors returns and clears the engine error text emitted since
// the previous take
func (c *Client) TakeEngineErrors() []string {
	c.errMu.Lock()
	empty := len(c.pending) == 0 && len(c.stderrBuf) == 0
	c.errMu.Unlock()
	if empty {
		time.Sleep(stderrGrace)
	}

	if errs := c.peekStderr(); len(errs) > 0 {
		for _, e := range errs {
			c.recordError(e)
		}
	}

	c.errMu.Lock()
	defer c.errMu.Unlock()
	taken := c.pending
	c.pending = nil
	return taken
}

func (c *Client) recordError(msg string) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.allErrs = append(c.allErrs, msg)
	c.pending = append(c.pending, msg)
	c.lastOK = false
}

// Exec writes a command terminated by the EOL sentinel and reads lines until
// the marker reappears, returning the concatenated output. A nil error does
// not imply the engine liked the command: engine-stream errors are recorded
// in the accumulator and reflected by Ok. A non-nil error means the protocol
// broke or the process is dead.
func (c *Client) Exec(command string) (string, error) {
	if c.State() == StateDead {
		return "", c.deadError()
	}

	c.execMu.Lock()
	defer c.execMu.Unlock()

	c.setBusy()
	defer c.clearBusy()

	c.errMu.Lock()
	c.lastOK = true
	c.errMu.Unlock()

	command = strings.TrimSpace(command)
	if command != "" && !strings.HasSuffix(command, ";") {
		command += ";"
	}

	if command != "" {
		if _, err := io.WriteString(c.stdin, command+"\n"); err != nil {
			c.markDead(errors.ClientDead, "write to engine failed")
			return "", errors.New(errors.Protocol, "write to engine failed", err)
		}
	}
	if _, err := io.WriteString(c.stdin, eolCommand+"\n"); err != nil {
		c.markDead(errors.ClientDead, "write to engine failed")
		return "", errors.New(errors.Protocol, "write to engine failed", err)
	}

	var out strings.Builder
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			// Pipe closed under us: either the watchdog killed the
			// process or it died on its own.
			if c.State() == StateDead {
				return out.String(), c.deadError()
			}
			c.markDead(errors.ClientDead, "engine closed the pipe before the sentinel")
			return out.String(), errors.New(errors.Protocol, "no sentinel before end of stream", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == eolMarker {
			break
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}

	// Non-blocking poll of the error stream for this command
	if errs := c.peekStderr(); len(errs) > 0 {
		for _, e := range errs {
			c.recordError(e)
		}
		c.logger.Debug("engine reported errors", map[string]interface{}{
			"command": command,
			"errors":  strings.Join(errs, "; "),
		})
	}

	return out.String(), nil
}

// stderrLoop drains the engine's error stream into the accumulator's
// pending buffer
func (c *Client) stderrLoop(stderr io.Reader) {
	defer c.wg.Done()
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.errMu.Lock()
		c.stderrBuf = append(c.stderrBuf, line)
		c.errMu.Unlock()
	}
}

// peekStderr takes whatever the stderr loop buffered so far
func (c *Client) peekStderr() []string {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	taken := c.stderrBuf
	c.stderrBuf = nil
	return taken
}

func (c *Client) setBusy() {
	c.busyMu.Lock()
	defer c.busyMu.Unlock()
	c.inFlight = true
	c.busySince = time.Now()
}

func (c *Client) clearBusy() {
	c.busyMu.Lock()
	defer c.busyMu.Unlock()
	c.inFlight = false
}

func (c *Client) busyFor() (time.Duration, bool) {
	c.busyMu.Lock()
	defer c.busyMu.Unlock()
	if !c.inFlight {
		return 0, false
	}
	return time.Since(c.busySince), true
}

// markDead transitions to the terminal state and records why. The first
// cause wins; later calls keep the original code and reason.
func (c *Client) markDead(code errors.Code, reason string) {
	c.stateMu.Lock()
	if c.deathCode == "" {
		c.deathCode = code
		c.deathReason = reason
	}
	c.state = StateDead
	c.stateMu.Unlock()
	c.recordError(reason)
	c.doneOnce.Do(func() { close(c.done) })
}

// deadError reports the recorded cause of death, so a watchdog kill stays
// distinguishable from an ordinary process death on every later call
func (c *Client) deadError() error {
	c.stateMu.RLock()
	code, reason := c.deathCode, c.deathReason
	c.stateMu.RUnlock()
	if code == "" {
		code = errors.ClientDead
	}
	if reason == "" {
		reason = "engine process is dead"
	}
	return errors.Newf(code, "%s", reason)
}

// kill terminates the subprocess; used by the watchdog and Shutdown
func (c *Client) kill() {
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
}

// Shutdown sends a best-effort exit, kills the process and reaps it. The
// client is dead afterwards.
func (c *Client) Shutdown() {
	if c.State() == StateReady {
		_, _ = io.WriteString(c.stdin, "exit;\n")
	}
	c.setState(StateDead)
	c.doneOnce.Do(func() { close(c.done) })
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	c.kill()
	if c.cmd != nil {
		_ = c.cmd.Wait()
	}
	c.wg.Wait()
}
