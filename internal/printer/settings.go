package printer

import (
	"fmt"
	"strings"
)

// Area selects one of the independently configured print destinations.
type Area string

const (
	AreaKitchen Area = "kitchen"
	AreaCashier Area = "cashier"
)

var Areas = []Area{AreaKitchen, AreaCashier}

func ParseArea(s string) (Area, error) {
	switch a := Area(strings.ToLower(strings.TrimSpace(s))); a {
	case AreaKitchen, AreaCashier:
		return a, nil
	default:
		return "", fmt.Errorf("unknown print area %q", s)
	}
}

const (
	KindESCPOS = "escpos"
	KindStar   = "star"

	ConnectionNetwork = "network"

	FontNormal = "normal"
	FontLarge  = "large"
	FontTall   = "tall"

	DefaultPort  = 9100
	DefaultWidth = 32
	MinWidth     = 16
)

// DeviceSettings is the per-area device configuration. It is read on every
// send, so edits take effect on the next print.
type DeviceSettings struct {
	Enabled    bool   `mapstructure:"enabled" json:"enabled"`
	Kind       string `mapstructure:"kind" json:"kind"`
	Connection string `mapstructure:"connection" json:"connection"`
	Host       string `mapstructure:"host" json:"host"`
	Port       int    `mapstructure:"port" json:"port"`
	Width      int    `mapstructure:"width" json:"width"`
	AutoPrint  bool   `mapstructure:"auto_print" json:"auto_print"`
	Bold       bool   `mapstructure:"bold" json:"bold"`
	CutPaper   bool   `mapstructure:"cut_paper" json:"cut_paper"`
	FontSize   string `mapstructure:"font_size" json:"font_size"`
	Header     string `mapstructure:"header" json:"header"`
	Footer     string `mapstructure:"footer" json:"footer"`
}

// WithDefaults fills the zero fields with the values a bare network
// printer ships with.
func (s DeviceSettings) WithDefaults() DeviceSettings {
	if s.Kind == "" {
		s.Kind = KindESCPOS
	}
	if s.Connection == "" {
		s.Connection = ConnectionNetwork
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.Width == 0 {
		s.Width = DefaultWidth
	}
	if s.FontSize == "" {
		s.FontSize = FontNormal
	}
	return s
}

func (s DeviceSettings) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type SettingsSource interface {
	Settings(area Area) (DeviceSettings, error)
}

// StaticSettings is a fixed SettingsSource.
type StaticSettings map[Area]DeviceSettings

func (s StaticSettings) Settings(area Area) (DeviceSettings, error) {
	return s[area], nil
}

// Result is the outcome of a print. Simulated results carry the text that
// would have been printed and the reason it was not.
type Result struct {
	Area         Area   `json:"area"`
	Simulated    bool   `json:"simulated"`
	Text         string `json:"text"`
	Message      string `json:"message"`
	BytesWritten int    `json:"bytes_written,omitempty"`
}

type Probe struct {
	Connected bool   `json:"connected"`
	Message   string `json:"message"`
}
