package smpp

import (
	"fmt"
	"time"
)

// Config holds the per-session engine settings.
type Config struct {
	SystemID        string        `yaml:"systemId"`        // reported in bind responses
	MaxIOErrors     int           `yaml:"maxIOErrors"`     // consecutive read failures before the session is dropped
	ReadTimeout     time.Duration `yaml:"readTimeout"`     // a read idle this long counts as a failure; 0 disables
	WriteTimeout    time.Duration `yaml:"writeTimeout"`    // 0 disables
	RequestTimeout  time.Duration `yaml:"requestTimeout"`  // wait for the response to a server originated request
	AcquireTimeout  time.Duration `yaml:"acquireTimeout"`  // wait for a free window slot
	WindowSize      int           `yaml:"windowSize"`      // pending server originated requests per session
	ProcessTimeout  time.Duration `yaml:"processTimeout"`  // answer ESME_RSYSERR when the processor is silent; 0 disables
	MaxPacketLength uint32        `yaml:"maxPacketLength"` // upper bound for command_length
}

// DefaultConfig returns the settings used for zero values.
func DefaultConfig() Config {
	return Config{
		SystemID:        "smppd",
		MaxIOErrors:     5,
		RequestTimeout:  10 * time.Second,
		AcquireTimeout:  time.Second,
		WindowSize:      DefaultWindowSize,
		MaxPacketLength: DefaultMaxLength,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.SystemID == "" {
		c.SystemID = def.SystemID
	}
	if c.MaxIOErrors <= 0 {
		c.MaxIOErrors = def.MaxIOErrors
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = def.AcquireTimeout
	}
	if c.WindowSize <= 0 {
		c.WindowSize = def.WindowSize
	}
	if c.MaxPacketLength == 0 {
		c.MaxPacketLength = def.MaxPacketLength
	}
	return c
}

// Validate rejects settings that cannot work.
func (c Config) Validate() error {
	switch {
	case len(c.SystemID)+1 > maxSystemID:
		return fmt.Errorf("smpp: systemId %q longer than %d characters", c.SystemID, maxSystemID-1)
	case c.MaxPacketLength != 0 && c.MaxPacketLength < HeaderLength:
		return fmt.Errorf("smpp: maxPacketLength %d is shorter than the PDU header", c.MaxPacketLength)
	case c.MaxIOErrors < 0, c.WindowSize < 0:
		return fmt.Errorf("smpp: negative maxIOErrors or windowSize")
	case c.ReadTimeout < 0, c.WriteTimeout < 0, c.RequestTimeout < 0, c.AcquireTimeout < 0, c.ProcessTimeout < 0:
		return fmt.Errorf("smpp: negative timeout")
	}
	return nil
}
