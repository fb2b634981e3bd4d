package emu

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config describes a machine: its RAM window, the image to load and the
// initial core state. Addresses may use YAML hex notation (0x8000).
type Config struct {
	RAMBase  uint32 `yaml:"ram-base"`
	RAMSize  int    `yaml:"ram-size"`
	Image    string `yaml:"image"`
	LoadAddr uint32 `yaml:"load-addr"`
	Entry    uint32 `yaml:"entry"`
	SP       uint32 `yaml:"sp"`
}

const defaultRAMSize = 0x10000

// LoadConfig reads a machine description from a YAML file and fills in
// defaults: RAM size 64KiB, image loaded at the RAM base, entry at the load
// address, stack at the top of RAM.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(buf, cfg); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	if cfg.RAMSize <= 0 {
		cfg.RAMSize = defaultRAMSize
	}
	if cfg.Image == "" {
		return nil, errors.New("machine config has no image")
	}
	if cfg.LoadAddr == 0 {
		cfg.LoadAddr = cfg.RAMBase
	}
	if cfg.Entry == 0 {
		cfg.Entry = cfg.LoadAddr
	}
	if cfg.SP == 0 {
		cfg.SP = cfg.RAMBase + uint32(cfg.RAMSize)
	}
	return cfg, nil
}

// NewFromConfig builds a Machine from a loaded configuration.
func NewFromConfig(cfg *Config) (*Machine, error) {
	m := New(cfg.RAMBase, cfg.RAMSize)
	image, err := os.ReadFile(cfg.Image)
	if err != nil {
		return nil, err
	}
	if err := m.LoadImage(cfg.LoadAddr, image); err != nil {
		return nil, fmt.Errorf("%s: %v", cfg.Image, err)
	}
	m.regs.PC = cfg.Entry
	m.regs.SP = cfg.SP
	return m, nil
}
