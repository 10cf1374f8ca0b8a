package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/joao-fontenele/tableside/internal/printer"
)

type printersFile struct {
	Kitchen printer.DeviceSettings `mapstructure:"kitchen"`
	Cashier printer.DeviceSettings `mapstructure:"cashier"`
}

// PrinterSettings serves per-area device settings from a YAML file with
// PRINTERS_<AREA>_<FIELD> environment overrides. The file is watched and
// re-read on change, so edits apply to the next print without a restart.
type PrinterSettings struct {
	v      *viper.Viper
	logger *slog.Logger

	mu    sync.RWMutex
	areas map[printer.Area]printer.DeviceSettings
}

// LoadPrinterSettings reads path if it exists. A missing file leaves every
// area at its defaults, which keeps printing disabled.
func LoadPrinterSettings(path string, logger *slog.Logger) (*PrinterSettings, error) {
	v := viper.New()
	v.SetEnvPrefix("PRINTERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, area := range printer.Areas {
		key := string(area)
		v.SetDefault(key+".enabled", false)
		v.SetDefault(key+".kind", printer.KindESCPOS)
		v.SetDefault(key+".connection", printer.ConnectionNetwork)
		v.SetDefault(key+".host", "")
		v.SetDefault(key+".port", printer.DefaultPort)
		v.SetDefault(key+".width", printer.DefaultWidth)
		v.SetDefault(key+".auto_print", false)
		v.SetDefault(key+".bold", false)
		v.SetDefault(key+".cut_paper", true)
		v.SetDefault(key+".font_size", printer.FontNormal)
		v.SetDefault(key+".header", "")
		v.SetDefault(key+".footer", "")
	}

	p := &PrinterSettings{v: v, logger: logger}

	watch := false
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read printer settings %s: %w", path, err)
			}
			logger.Info("no printer settings file, using environment and defaults", "path", path)
		} else {
			watch = true
		}
	}

	if err := p.reload(); err != nil {
		return nil, err
	}

	if watch {
		v.OnConfigChange(func(e fsnotify.Event) {
			if err := p.reload(); err != nil {
				logger.Error("failed to reload printer settings, keeping previous", "error", err, "path", e.Name)
				return
			}
			logger.Info("printer settings reloaded", "path", e.Name)
		})
		v.WatchConfig()
	}

	return p, nil
}

func (p *PrinterSettings) reload() error {
	var file printersFile
	if err := p.v.Unmarshal(&file); err != nil {
		return fmt.Errorf("decode printer settings: %w", err)
	}

	areas := map[printer.Area]printer.DeviceSettings{
		printer.AreaKitchen: file.Kitchen,
		printer.AreaCashier: file.Cashier,
	}

	p.mu.Lock()
	p.areas = areas
	p.mu.Unlock()
	return nil
}

func (p *PrinterSettings) Settings(area printer.Area) (printer.DeviceSettings, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.areas[area]
	if !ok {
		return printer.DeviceSettings{}, fmt.Errorf("no printer settings for area %q", area)
	}
	return s, nil
}
