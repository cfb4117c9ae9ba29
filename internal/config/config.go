package config

import (
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

type Model struct {
	Key             string  `yaml:"key"`
	Path            string  `yaml:"path"`
	TextureRotation float64 `yaml:"texture_rotation"` // radians
	TextureFlip     float64 `yaml:"texture_flip"`     // +1 | -1
}

type Environment struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

type Display struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type MIDI struct {
	Transport string `yaml:"transport"` // "none" | "serial" | "rawmidi"
	Port      string `yaml:"port"`      // e.g. /dev/ttyUSB0
	Baud      int    `yaml:"baud"`      // 31250 for DIN MIDI, 115200 for USB bridges
	Device    string `yaml:"device"`    // e.g. /dev/snd/midiC1D0
}

type Mirror struct {
	Driver    string `yaml:"driver"` // "none" | "spi" | "console"
	Dev       string `yaml:"dev"`
	NumPixels int    `yaml:"num_pixels"`
}

type Config struct {
	LogLevel  string `yaml:"log_level"`
	Addr      string `yaml:"addr"`
	FPS       int    `yaml:"fps"`
	ExportDir string `yaml:"export_dir"`
	AssetDir  string `yaml:"asset_dir"`

	Display      Display       `yaml:"display"`
	Models       []Model       `yaml:"models"`
	DefaultModel string        `yaml:"default_model"`
	Environments []Environment `yaml:"environments"`
	MIDI         MIDI          `yaml:"midi"`
	Mirror       Mirror        `yaml:"mirror,omitempty"`
}

// Default mirrors the stock rig: three device models with baked-in feed
// orientation and three HDR backdrops.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		Addr:      ":8080",
		FPS:       60,
		ExportDir: "captures",
		AssetDir:  ".",
		Display:   Display{Width: 1280, Height: 720},
		Models: []Model{
			{Key: "macbook", Path: "models/macbook/scene.gltf", TextureRotation: math.Pi / 2, TextureFlip: 1},
			{Key: "iphone", Path: "models/iphone/scene.gltf", TextureRotation: -math.Pi / 2, TextureFlip: 1},
			{Key: "macintoshclassic", Path: "models/macintoshclassic/scene.gltf", TextureRotation: math.Pi, TextureFlip: 1},
		},
		DefaultModel: "macbook",
		Environments: []Environment{
			{Name: "spot1lux", Path: "textures/spot1Lux.hdr"},
			{Name: "moonless_golf", Path: "textures/moonless_golf_1k.hdr"},
			{Name: "quarry", Path: "textures/quarry_01_1k.hdr"},
		},
		MIDI:   MIDI{Transport: "none", Baud: 31250},
		Mirror: Mirror{Driver: "none", NumPixels: 30},
	}
}

// Load reads path over the defaults; fields absent from the file keep their
// default value.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Model looks up a model entry by key.
func (c *Config) Model(key string) (Model, bool) {
	for _, m := range c.Models {
		if m.Key == key {
			return m, true
		}
	}
	return Model{}, false
}

func (c *Config) ModelKeys() []string {
	out := make([]string, 0, len(c.Models))
	for _, m := range c.Models {
		out = append(out, m.Key)
	}
	return out
}
