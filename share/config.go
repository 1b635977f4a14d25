package gwshare

import (
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

const (
	// DefaultPollInterval bounds each multiplexer wait
	DefaultPollInterval = 5 * time.Second

	// DefaultNearChunkSize is the largest read from a backend connection per wakeup
	DefaultNearChunkSize = 4096

	// DefaultFarChunkSize is the largest read from a public connection per wakeup
	DefaultFarChunkSize = 2048

	// DefaultDialTimeout bounds backend and control dials
	DefaultDialTimeout = 5 * time.Second

	// DefaultRetryInterval is the fixed wait between control connect attempts
	DefaultRetryInterval = 5 * time.Second

	// DefaultBackendAddress is where the near broker dials job connections
	DefaultBackendAddress = "127.0.0.1"

	// TunnelKeepAlivePeriod is the TCP keep-alive period set on every tunnel socket
	TunnelKeepAlivePeriod = 60 * time.Second
)

// Control channel transports
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"
)

// LogConfig selects where log records go and how verbose they are
type LogConfig struct {
	// Debug enables DEBUG records at startup
	Debug bool

	// Name is the log destination name. Empty means stderr; otherwise records are
	// appended to <Dir>/log-<Name>-<pid>.log
	Name string

	// Dir is the directory for the log file
	Dir string

	// Stderr copies file records to stderr as well
	Stderr bool

	// DebugFlagFile, if set, is watched at runtime: DEBUG output is on while the
	// file exists and off while it does not
	DebugFlagFile string
}

// BackoffConfig is the retry policy for establishing the control connection. With
// Min == Max the wait is fixed.
type BackoffConfig struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter bool

	// MaxAttempts stops retrying after this many failed attempts; 0 retries forever
	MaxAttempts int
}

// ApplyDefaults fills in a fixed DefaultRetryInterval policy
func (c *BackoffConfig) ApplyDefaults() {
	if c.Min <= 0 {
		c.Min = DefaultRetryInterval
	}
	if c.Max < c.Min {
		c.Max = c.Min
	}
	if c.Factor <= 0 {
		c.Factor = 2
	}
}

// NewBackoff creates the backoff state for one connect sequence
func (c *BackoffConfig) NewBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    c.Min,
		Max:    c.Max,
		Factor: c.Factor,
		Jitter: c.Jitter,
	}
}

// NearConfig is the configuration of a near (device-side) broker
type NearConfig struct {
	// ControlAddress and ControlPort locate the far broker's control listener
	ControlAddress string
	ControlPort    int

	// BackendAddress and JobPort locate the private backend service
	BackendAddress string
	JobPort        int

	// Transport is TransportTCP or TransportWebSocket
	Transport string

	ChunkSize    int
	PollInterval time.Duration
	DialTimeout  time.Duration

	// FrameReadTimeout bounds reading the rest of a control frame once its first
	// byte has arrived. 0 disables it.
	FrameReadTimeout time.Duration

	Backoff BackoffConfig
	Log     LogConfig
}

// ApplyDefaults fills in zero-valued fields
func (c *NearConfig) ApplyDefaults() {
	if c.BackendAddress == "" {
		c.BackendAddress = DefaultBackendAddress
	}
	if c.Transport == "" {
		c.Transport = TransportTCP
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultNearChunkSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	c.Backoff.ApplyDefaults()
}

// Validate checks a NearConfig after ApplyDefaults
func (c *NearConfig) Validate() error {
	if c.ControlAddress == "" {
		return fmt.Errorf("control address is required")
	}
	if err := validatePort("control", c.ControlPort, false); err != nil {
		return err
	}
	if err := validatePort("job", c.JobPort, false); err != nil {
		return err
	}
	return validateTransport(c.Transport)
}

// FarConfig is the configuration of a far (internet-facing) broker
type FarConfig struct {
	// ControlBind and ControlPort are where the single control connection is accepted
	ControlBind string
	ControlPort int

	// JobBind and JobPort are where public clients are accepted
	JobBind string
	JobPort int

	// Transport is TransportTCP or TransportWebSocket
	Transport string

	ChunkSize        int
	PollInterval     time.Duration
	FrameReadTimeout time.Duration

	Log LogConfig
}

// ApplyDefaults fills in zero-valued fields
func (c *FarConfig) ApplyDefaults() {
	if c.Transport == "" {
		c.Transport = TransportTCP
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultFarChunkSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
}

// Validate checks a FarConfig after ApplyDefaults. Port 0 picks an ephemeral port.
func (c *FarConfig) Validate() error {
	if err := validatePort("control", c.ControlPort, true); err != nil {
		return err
	}
	if err := validatePort("job", c.JobPort, true); err != nil {
		return err
	}
	return validateTransport(c.Transport)
}

func validatePort(name string, port int, allowZero bool) error {
	if port < 0 || port > 65535 || (port == 0 && !allowZero) {
		return fmt.Errorf("invalid %s port: %d", name, port)
	}
	return nil
}

func validateTransport(transport string) error {
	switch transport {
	case TransportTCP, TransportWebSocket:
		return nil
	}
	return fmt.Errorf("unknown control transport \"%s\"", transport)
}
