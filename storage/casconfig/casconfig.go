// Package casconfig opens the payload store described by the "storage"
// section of a provchain config file.
package casconfig

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"xdao.co/provchain/storage"
	"xdao.co/provchain/storage/grpccas"
	"xdao.co/provchain/storage/ipfs"
	"xdao.co/provchain/storage/localfs"
)

// Config describes one or more CAS backends.
//
// WritePolicy values:
// - "first" (default): write only to the first backend; reads fall back in order
// - "all": write to all backends and require CID equality (see storage.ReplicatingCAS)
//
// Example:
//
//	write_policy: all
//	backends:
//	  - kind: localfs
//	    dir: /var/lib/provchain/cas
//	    compress: true
//	  - kind: grpc
//	    id: mirror
//	    target: cas.internal:7777
//	    timeout: 5s
//	  - kind: ipfs
//	    ipfs_path: /var/lib/ipfs
type Config struct {
	WritePolicy string          `yaml:"write_policy,omitempty"`
	Backends    []BackendConfig `yaml:"backends"`
}

type BackendConfig struct {
	// Kind is "localfs", "grpc" or "ipfs".
	Kind string `yaml:"kind"`
	// ID is an optional stable alias used in per-backend CID maps.
	// If empty, Kind is used.
	ID string `yaml:"id,omitempty"`

	// localfs
	Dir      string `yaml:"dir,omitempty"`
	Compress bool   `yaml:"compress,omitempty"`

	// grpc
	Target      string        `yaml:"target,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	MaxMsgBytes int           `yaml:"max_msg_bytes,omitempty"`

	// ipfs
	Bin      string `yaml:"bin,omitempty"`
	IPFSPath string `yaml:"ipfs_path,omitempty"`
}

func (b BackendConfig) name() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Kind
}

// LoadFile reads a standalone storage config.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("casconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("casconfig: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		switch b.Kind {
		case "localfs":
			if b.Dir == "" {
				return errors.New("casconfig: localfs backend needs dir")
			}
		case "grpc":
			if b.Target == "" {
				return errors.New("casconfig: grpc backend needs target")
			}
		case "ipfs":
		case "":
			return errors.New("casconfig: backend kind is required")
		default:
			return fmt.Errorf("casconfig: unknown backend kind %q", b.Kind)
		}
		if _, ok := seen[b.name()]; ok {
			return fmt.Errorf("casconfig: duplicate backend id %q", b.name())
		}
		seen[b.name()] = struct{}{}
	}
	switch c.WritePolicy {
	case "", "first", "all":
		return nil
	default:
		return fmt.Errorf("casconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens a CAS per config and returns it with a function closing every
// backend.
//
// If preferred is non-empty, the backend with that id (or kind) is moved
// first, and so receives writes under the "first" policy.
func (c Config) Open(preferred string) (storage.CAS, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	ordered := append([]BackendConfig(nil), c.Backends...)
	if preferred != "" {
		idx := -1
		for i := range ordered {
			if ordered[i].Kind == preferred || ordered[i].ID == preferred {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil, fmt.Errorf("casconfig: preferred backend %q not found in config", preferred)
		}
		if idx != 0 {
			b := ordered[idx]
			copy(ordered[1:idx+1], ordered[0:idx])
			ordered[0] = b
		}
	}

	named := make([]storage.NamedCAS, 0, len(ordered))
	closers := make([]func() error, 0, len(ordered))
	closeAll := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}

	for _, b := range ordered {
		cas, closeFn, err := openBackend(b)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("casconfig: open %s: %w", b.name(), err)
		}
		named = append(named, storage.NamedCAS{Name: b.name(), CAS: cas})
		closers = append(closers, closeFn)
	}

	if len(named) == 1 {
		return named[0].CAS, closeAll, nil
	}

	switch c.WritePolicy {
	case "all":
		return storage.ReplicatingCAS{Backends: named}, closeAll, nil
	default:
		adapters := make([]storage.CAS, 0, len(named))
		for _, n := range named {
			adapters = append(adapters, n.CAS)
		}
		return storage.MultiCAS{Adapters: adapters}, closeAll, nil
	}
}

func openBackend(b BackendConfig) (storage.CAS, func() error, error) {
	switch b.Kind {
	case "localfs":
		var opts []localfs.Option
		if b.Compress {
			opts = append(opts, localfs.WithCompression())
		}
		cas, err := localfs.New(b.Dir, opts...)
		if err != nil {
			return nil, nil, err
		}
		return cas, cas.Close, nil
	case "grpc":
		client, err := grpccas.Dial(b.Target, grpccas.DialOptions{MaxMsgBytes: b.MaxMsgBytes})
		if err != nil {
			return nil, nil, err
		}
		client.Timeout = b.Timeout
		return client, client.Close, nil
	case "ipfs":
		var env []string
		if b.IPFSPath != "" {
			env = append(os.Environ(), "IPFS_PATH="+b.IPFSPath)
		}
		return ipfs.New(ipfs.Options{Bin: b.Bin, Env: env}), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend kind %q", b.Kind)
	}
}
